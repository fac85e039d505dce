package usecase

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stone-app/backend/internal/domain"
)

func seedAccounts(t *testing.T, repo *fakeAccountRepo, usernames ...string) {
	t.Helper()
	for i, username := range usernames {
		err := repo.Create(&domain.Account{
			Username:     username,
			Email:        username + "@seed.example.com",
			AuthProvider: domain.ProviderPassword,
			PasswordHash: "x",
		})
		if err != nil {
			t.Fatalf("seed account %d: %v", i, err)
		}
	}
}

func TestProvisioner_ReturnsExistingAccount(t *testing.T) {
	t.Parallel()

	repo := newFakeAccountRepo()
	existing := &domain.Account{
		Username:       "maxpower",
		Email:          "old@example.com",
		AuthProvider:   domain.ProviderApple,
		AppleSubjectID: "subject-1",
	}
	if err := repo.Create(existing); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p := NewProvisioner(repo, &fakeModeration{})
	account, err := p.ResolveOrCreate(domain.ProviderApple, "subject-1", "new-relay@privaterelay.appleid.com")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if account.ID != existing.ID {
		t.Fatalf("expected existing account, got %v", account.ID)
	}
	// Subsequent sign-ins never overwrite email or username.
	if account.Email != "old@example.com" {
		t.Fatalf("email was overwritten: %q", account.Email)
	}
}

func TestProvisioner_UsernameFromEmail(t *testing.T) {
	t.Parallel()

	repo := newFakeAccountRepo()
	p := NewProvisioner(repo, &fakeModeration{})

	account, err := p.ResolveOrCreate(domain.ProviderGoogle, "g-1", "Max.Power+tag@gmail.com")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if account.Username != "maxpowertag" {
		t.Fatalf("unexpected username %q", account.Username)
	}
	if account.GoogleSubjectID != "g-1" {
		t.Fatalf("subject not stored: %q", account.GoogleSubjectID)
	}
	if account.AuthProvider != domain.ProviderGoogle {
		t.Fatalf("unexpected provider %q", account.AuthProvider)
	}
}

func TestProvisioner_UsernameSuffix(t *testing.T) {
	t.Parallel()

	repo := newFakeAccountRepo()
	seedAccounts(t, repo, "max", "max1")

	p := NewProvisioner(repo, &fakeModeration{})
	account, err := p.ResolveOrCreate(domain.ProviderApple, "a-1", "max@example.com")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if account.Username != "max2" {
		t.Fatalf("expected max2, got %q", account.Username)
	}
}

func TestProvisioner_LongUsernameTruncated(t *testing.T) {
	t.Parallel()

	repo := newFakeAccountRepo()
	p := NewProvisioner(repo, &fakeModeration{})

	account, err := p.ResolveOrCreate(domain.ProviderApple, "a-2", "averyveryverylongaddresslocalpart@example.com")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if len(account.Username) > 20 {
		t.Fatalf("username exceeds 20 chars: %q", account.Username)
	}

	// A suffixed collision must also stay within bounds.
	account2, err := p.ResolveOrCreate(domain.ProviderApple, "a-3", "averyveryverylongaddresslocalpart@other.example.com")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if len(account2.Username) > 20 {
		t.Fatalf("suffixed username exceeds 20 chars: %q", account2.Username)
	}
	if account2.Username == account.Username {
		t.Fatalf("usernames collided: %q", account2.Username)
	}
}

func TestProvisioner_NoEmailFallsBackToGeneric(t *testing.T) {
	t.Parallel()

	repo := newFakeAccountRepo()
	p := NewProvisioner(repo, &fakeModeration{})

	account, err := p.ResolveOrCreate(domain.ProviderApple, "a-4", "")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if account.Username != "user" {
		t.Fatalf("expected generic username, got %q", account.Username)
	}
}

func TestProvisioner_SymbolOnlyLocalPart(t *testing.T) {
	t.Parallel()

	repo := newFakeAccountRepo()
	p := NewProvisioner(repo, &fakeModeration{})

	account, err := p.ResolveOrCreate(domain.ProviderApple, "a-5", "---@example.com")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if account.Username != "user" {
		t.Fatalf("expected generic username, got %q", account.Username)
	}
}

func TestProvisioner_ModerationFlagged(t *testing.T) {
	t.Parallel()

	repo := newFakeAccountRepo()
	mod := &fakeModeration{flagged: map[string]bool{"badword": true}}
	p := NewProvisioner(repo, mod)

	account, err := p.ResolveOrCreate(domain.ProviderApple, "a-6", "badword@example.com")
	if err != nil {
		t.Fatalf("ResolveOrCreate error: %v", err)
	}
	if account.Username != "user" {
		t.Fatalf("flagged base should fall back to generic, got %q", account.Username)
	}

	// The flagged name must never have been persisted.
	if persisted, _ := repo.GetByUsername("badword"); persisted != nil {
		t.Fatal("flagged username was persisted")
	}
}

func TestProvisioner_ModerationUnavailableFailsOpen(t *testing.T) {
	t.Parallel()

	repo := newFakeAccountRepo()
	mod := &fakeModeration{err: errors.New("connection refused")}
	p := NewProvisioner(repo, mod)

	account, err := p.ResolveOrCreate(domain.ProviderApple, "a-7", "maxpower@example.com")
	if err != nil {
		t.Fatalf("moderation outage must not block provisioning: %v", err)
	}
	if account.Username != "maxpower" {
		t.Fatalf("expected derived username despite outage, got %q", account.Username)
	}
}

// lostRaceRepo simulates losing the first-sign-in race: the first Create
// reports a duplicate subject after a concurrent winner inserted.
type lostRaceRepo struct {
	*fakeAccountRepo
	raced bool
	mu    sync.Mutex
}

func (r *lostRaceRepo) Create(account *domain.Account) error {
	r.mu.Lock()
	if !r.raced {
		r.raced = true
		winner := *account
		winner.Username = "winner"
		winner.Email = "winner@example.com"
		if err := r.fakeAccountRepo.Create(&winner); err != nil {
			r.mu.Unlock()
			return err
		}
		r.mu.Unlock()
		return domain.ErrDuplicateSubject
	}
	r.mu.Unlock()
	return r.fakeAccountRepo.Create(account)
}

func TestProvisioner_DuplicateSubjectResolvedAsLookup(t *testing.T) {
	t.Parallel()

	repo := &lostRaceRepo{fakeAccountRepo: newFakeAccountRepo()}
	p := NewProvisioner(repo, &fakeModeration{})

	account, err := p.ResolveOrCreate(domain.ProviderApple, "abc", "loser@example.com")
	if err != nil {
		t.Fatalf("lost race must not surface an error: %v", err)
	}
	if account.Username != "winner" {
		t.Fatalf("expected the winner's account, got %q", account.Username)
	}
}

func TestProvisioner_ConcurrentFirstSignIn(t *testing.T) {
	t.Parallel()

	repo := newFakeAccountRepo()
	p := NewProvisioner(repo, &fakeModeration{})

	const workers = 8
	var wg sync.WaitGroup
	accounts := make([]*domain.Account, workers)
	errs := make([]error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			accounts[i], errs[i] = p.ResolveOrCreate(domain.ProviderApple, "abc", "max@example.com")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d error: %v", i, errs[i])
		}
	}
	if repo.count() != 1 {
		t.Fatalf("expected exactly 1 account, got %d", repo.count())
	}
	for i := 1; i < workers; i++ {
		if accounts[i].ID != accounts[0].ID {
			t.Fatalf("workers resolved different accounts: %v vs %v", accounts[i].ID, accounts[0].ID)
		}
	}
}

func TestUsernameBase(t *testing.T) {
	t.Parallel()

	cases := []struct {
		email string
		want  string
	}{
		{"max@example.com", "max"},
		{"Max.Power@example.com", "maxpower"},
		{"max_power99@example.com", "max_power99"},
		{"", "user"},
		{"@example.com", "user"},
		{"ab@example.com", "user"},
		{strings.Repeat("a", 30) + "@example.com", strings.Repeat("a", 20)},
	}
	for _, c := range cases {
		if got := usernameBase(c.email); got != c.want {
			t.Errorf("usernameBase(%q) = %q, want %q", c.email, got, c.want)
		}
	}
}
