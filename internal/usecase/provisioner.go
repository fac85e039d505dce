package usecase

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/stone-app/backend/internal/domain"
)

const (
	genericUsernameBase = "user"
	maxUsernameLen      = 20

	// Retries for losing a username insert race before giving up. Each
	// retry re-probes, so this only triggers under heavy concurrent
	// registration with colliding bases.
	maxCreateAttempts = 3
)

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]`)

// ModerationChecker reports whether a piece of text is unacceptable as a
// public name. Availability failures fail open at the call site.
type ModerationChecker interface {
	CheckText(text string) (bool, error)
}

// Provisioner resolves a verified external identity to a local account,
// creating one on first sign-in. The store's unique constraint on the
// provider subject column is the final arbiter when two first-time
// sign-ins race: the loser re-reads the winner's row.
type Provisioner struct {
	accountRepo domain.AccountRepository
	moderation  ModerationChecker
}

func NewProvisioner(accountRepo domain.AccountRepository, moderation ModerationChecker) *Provisioner {
	return &Provisioner{accountRepo: accountRepo, moderation: moderation}
}

func (p *Provisioner) ResolveOrCreate(provider domain.AuthProvider, subjectID, email string) (*domain.Account, error) {
	account, err := p.accountRepo.GetBySubject(provider, subjectID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		// Sign-in, not re-provisioning: email and username stay as they
		// were even if the provider now reports something else.
		return account, nil
	}

	base := usernameBase(email)
	username, err := p.chooseUsername(base)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		account = &domain.Account{
			Username:     username,
			Email:        email,
			AuthProvider: provider,
		}
		switch provider {
		case domain.ProviderApple:
			account.AppleSubjectID = subjectID
		case domain.ProviderGoogle:
			account.GoogleSubjectID = subjectID
		default:
			return nil, fmt.Errorf("unsupported auth provider %q", provider)
		}

		err = p.accountRepo.Create(account)
		if err == nil {
			return account, nil
		}
		if isDuplicate(err) {
			// A concurrent first sign-in for the same subject may surface
			// as any of the unique constraints (it shares email and
			// username base with us), so always re-check the subject.
			winner, lookupErr := p.accountRepo.GetBySubject(provider, subjectID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if winner != nil {
				return winner, nil
			}
		}
		if err == domain.ErrDuplicateUsername && attempt < maxCreateAttempts {
			username, err = p.chooseUsername(base)
			if err != nil {
				return nil, err
			}
			continue
		}
		return nil, err
	}
}

func isDuplicate(err error) bool {
	return err == domain.ErrDuplicateSubject ||
		err == domain.ErrDuplicateUsername ||
		err == domain.ErrDuplicateEmail
}

// chooseUsername finds an unused username for the base, then clears it
// through moderation. A flagged name is discarded and resolution restarts
// from the generic base so it is never persisted.
func (p *Provisioner) chooseUsername(base string) (string, error) {
	username, err := p.availableUsername(base)
	if err != nil {
		return "", err
	}

	if p.moderation != nil && base != genericUsernameBase {
		flagged, err := p.moderation.CheckText(username)
		if err != nil {
			log.Printf("moderation check unavailable, allowing username: %v", err)
		} else if flagged {
			return p.availableUsername(genericUsernameBase)
		}
	}
	return username, nil
}

// availableUsername probes the store for base, base1, base2, ... until an
// unused value turns up. The suffix eats into the base so the result stays
// within the length bound.
func (p *Provisioner) availableUsername(base string) (string, error) {
	for i := 0; ; i++ {
		candidate := base
		if i > 0 {
			suffix := strconv.Itoa(i)
			if len(base)+len(suffix) > maxUsernameLen {
				candidate = base[:maxUsernameLen-len(suffix)]
			}
			candidate += suffix
		}

		existing, err := p.accountRepo.GetByUsername(candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
	}
}

// usernameBase derives a username seed from the local part of the email,
// restricted to lowercase letters, digits and underscore.
func usernameBase(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	base := usernameStrip.ReplaceAllString(strings.ToLower(local), "")
	if len(base) > maxUsernameLen {
		base = base[:maxUsernameLen]
	}
	if len(base) < 3 {
		// Too short to satisfy the username bounds on its own.
		base = genericUsernameBase
	}
	return base
}
