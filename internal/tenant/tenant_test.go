package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvisioner struct {
	purchased []PurchaseRequest
	released  []string
	err       error
}

func (f *fakeProvisioner) PurchaseNumber(ctx context.Context, req PurchaseRequest) (PurchasedNumber, error) {
	if f.err != nil {
		return PurchasedNumber{}, f.err
	}
	f.purchased = append(f.purchased, req)
	return PurchasedNumber{E164: "+18005550100", ProviderRef: "PN123"}, nil
}

func (f *fakeProvisioner) ReleaseNumber(ctx context.Context, providerRef string) error {
	if f.err != nil {
		return f.err
	}
	f.released = append(f.released, providerRef)
	return nil
}

type fakeHooks struct{}

func (fakeHooks) VoiceURL(id string) string  { return "https://x/voice?tenant=" + id }
func (fakeHooks) SMSURL(id string) string    { return "https://x/sms?tenant=" + id }
func (fakeHooks) StatusURL(id string) string { return "https://x/status?tenant=" + id }

type auditCall struct {
	tenantID, message string
}

type fakeAudit struct{ calls []auditCall }

func (f *fakeAudit) LogAdminAction(ctx context.Context, tenantID, actorID, actorRole, ip, message string, metadata any) error {
	f.calls = append(f.calls, auditCall{tenantID: tenantID, message: message})
	return nil
}

func newAdmin(t *testing.T) (*AdminService, *MemoryRepo, *Registry, *fakeProvisioner, *fakeAudit) {
	t.Helper()
	repo := NewMemoryRepo()
	reg := NewRegistry(repo, "pepper")
	prov := &fakeProvisioner{}
	aud := &fakeAudit{}
	return NewAdminService(repo, reg, prov, fakeHooks{}, aud), repo, reg, prov, aud
}

var operator = Actor{ID: "op-1", Role: "super_admin", IP: "10.0.0.1"}

func TestRegistry_ResolveFailsClosed(t *testing.T) {
	ctx := context.Background()
	admin, _, reg, _, _ := newAdmin(t)

	ten, key, err := admin.CreateTenant(ctx, operator, CreateTenantInput{DisplayName: "Acme", CompanyName: "Acme LLC"})
	require.NoError(t, err)
	require.NotEmpty(t, key)
	assert.NotEqual(t, key, ten.APIKeyHash)

	got, err := reg.ResolveByAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, ten.ID, got.ID)

	_, err = reg.ResolveByAPIKey(ctx, "sb_wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = reg.ResolveByAPIKey(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = reg.ResolveByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = admin.SetStatus(ctx, operator, ten.ID, StatusSuspended)
	require.NoError(t, err)

	_, err = reg.ResolveByAPIKey(ctx, key)
	assert.ErrorIs(t, err, ErrTenantInactive)
	_, err = reg.ResolveByID(ctx, ten.ID)
	assert.ErrorIs(t, err, ErrTenantInactive)

	_, err = admin.SetStatus(ctx, operator, ten.ID, StatusActive)
	require.NoError(t, err)
	_, err = reg.ResolveByID(ctx, ten.ID)
	assert.NoError(t, err)
}

func TestAdmin_CancelledIsFinal(t *testing.T) {
	ctx := context.Background()
	admin, _, _, _, _ := newAdmin(t)
	ten, _, err := admin.CreateTenant(ctx, operator, CreateTenantInput{DisplayName: "A", CompanyName: "B"})
	require.NoError(t, err)

	_, err = admin.SetStatus(ctx, operator, ten.ID, StatusCancelled)
	require.NoError(t, err)
	_, err = admin.SetStatus(ctx, operator, ten.ID, StatusActive)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = admin.SetStatus(ctx, operator, ten.ID, Status("paused"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAdmin_RotateAPIKeyInvalidatesOld(t *testing.T) {
	ctx := context.Background()
	admin, _, reg, _, aud := newAdmin(t)
	ten, oldKey, err := admin.CreateTenant(ctx, operator, CreateTenantInput{DisplayName: "A", CompanyName: "B"})
	require.NoError(t, err)

	newKey, err := admin.RotateAPIKey(ctx, operator, ten.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, newKey)

	_, err = reg.ResolveByAPIKey(ctx, oldKey)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = reg.ResolveByAPIKey(ctx, newKey)
	assert.NoError(t, err)

	require.Len(t, aud.calls, 2)
	assert.Equal(t, "api key rotated", aud.calls[1].message)
}

func TestAdmin_ProvisionAndReleaseNumber(t *testing.T) {
	ctx := context.Background()
	admin, _, reg, prov, _ := newAdmin(t)
	ten, _, err := admin.CreateTenant(ctx, operator, CreateTenantInput{DisplayName: "A", CompanyName: "B"})
	require.NoError(t, err)

	_, err = admin.ProvisionNumber(ctx, operator, ten.ID, ProvisionNumberInput{Kind: NumberKindLocal})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	n, err := admin.ProvisionNumber(ctx, operator, ten.ID, ProvisionNumberInput{Kind: NumberKindTollFree})
	require.NoError(t, err)
	require.Len(t, prov.purchased, 1)
	assert.Equal(t, "https://x/voice?tenant="+ten.ID, prov.purchased[0].VoiceURL)
	assert.Equal(t, "https://x/sms?tenant="+ten.ID, prov.purchased[0].SMSURL)

	owned, err := reg.OwnedNumber(ctx, ten.ID, "+18005550100")
	require.NoError(t, err)
	assert.Equal(t, n.ID, owned.ID)

	released, err := admin.ReleaseNumber(ctx, operator, ten.ID, n.ID)
	require.NoError(t, err)
	assert.False(t, released.Active)
	assert.Equal(t, []string{"PN123"}, prov.released)

	_, err = reg.OwnedNumber(ctx, ten.ID, "+18005550100")
	assert.ErrorIs(t, err, ErrNumberNotOwned)

	// second release is a no-op
	_, err = admin.ReleaseNumber(ctx, operator, ten.ID, n.ID)
	require.NoError(t, err)
	assert.Len(t, prov.released, 1)
}

func TestRegistry_OwnedNumberAfterRebuy(t *testing.T) {
	ctx := context.Background()
	admin, _, reg, _, _ := newAdmin(t)
	ten, _, err := admin.CreateTenant(ctx, operator, CreateTenantInput{DisplayName: "A", CompanyName: "B"})
	require.NoError(t, err)

	first, err := admin.ProvisionNumber(ctx, operator, ten.ID, ProvisionNumberInput{Kind: NumberKindTollFree})
	require.NoError(t, err)
	_, err = admin.ReleaseNumber(ctx, operator, ten.ID, first.ID)
	require.NoError(t, err)

	// The provider hands back the same e164 on the second purchase.
	second, err := admin.ProvisionNumber(ctx, operator, ten.ID, ProvisionNumberInput{Kind: NumberKindTollFree})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	for i := 0; i < 10; i++ {
		owned, err := reg.OwnedNumber(ctx, ten.ID, "+18005550100")
		require.NoError(t, err)
		assert.Equal(t, second.ID, owned.ID)
	}
}

func TestMemoryRepo_NumberByE164PrefersNewestActive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	base := time.Unix(1700000000, 0).UTC()
	require.NoError(t, repo.InsertNumber(ctx, PhoneNumber{ID: "old", TenantID: "t1", E164: "+18005550100", Active: false, CreatedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, repo.InsertNumber(ctx, PhoneNumber{ID: "cur", TenantID: "t1", E164: "+18005550100", Active: true, CreatedAt: base}))

	n, err := repo.NumberByE164(ctx, "t1", "+18005550100")
	require.NoError(t, err)
	assert.Equal(t, "cur", n.ID)

	_, err = repo.NumberByE164(ctx, "t2", "+18005550100")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdmin_ProvisionUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	admin, repo, _, prov, _ := newAdmin(t)
	ten, _, err := admin.CreateTenant(ctx, operator, CreateTenantInput{DisplayName: "A", CompanyName: "B"})
	require.NoError(t, err)

	prov.err = errors.New("twilio down")
	_, err = admin.ProvisionNumber(ctx, operator, ten.ID, ProvisionNumberInput{Kind: NumberKindTollFree})
	assert.ErrorIs(t, err, ErrUpstream)

	nums, _ := repo.ListNumbers(ctx, ten.ID, false)
	assert.Empty(t, nums)
}

func seedTenant(t *testing.T, repo *MemoryRepo, id string) Tenant {
	t.Helper()
	ten := Tenant{ID: id, DisplayName: id, CompanyName: id, Status: StatusActive}
	require.NoError(t, repo.InsertTenant(context.Background(), ten))
	return ten
}

func TestRegistry_OldestActiveNumberAndDirectDial(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	reg := NewRegistry(repo, "")
	seedTenant(t, repo, "t1")

	_, err := reg.OldestActiveNumber(ctx, "t1")
	assert.ErrorIs(t, err, ErrNoActiveNumber)

	base := time.Unix(1700000000, 0).UTC()
	require.NoError(t, repo.InsertNumber(ctx, PhoneNumber{ID: "n1", TenantID: "t1", E164: "+18005550100", Kind: NumberKindTollFree, Active: false, CreatedAt: base}))
	require.NoError(t, repo.InsertNumber(ctx, PhoneNumber{ID: "n2", TenantID: "t1", E164: "+15125550101", Kind: NumberKindLocal, Active: true, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.InsertNumber(ctx, PhoneNumber{ID: "n3", TenantID: "t1", E164: "+15125550102", Kind: NumberKindLocal, Active: true, CreatedAt: base.Add(2 * time.Hour)}))

	oldest, err := reg.OldestActiveNumber(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "n2", oldest.ID)

	require.NoError(t, repo.InsertExtension(ctx, Extension{ID: "e1", TenantID: "t1", Code: "101", Name: "Jane", AssignedNumber: "+15125550101", Active: true}))

	ext, ok, err := reg.DirectDialExtension(ctx, oldest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "101", ext.Code)

	tollFree := PhoneNumber{TenantID: "t1", E164: "+15125550101", Kind: NumberKindTollFree}
	_, ok, err = reg.DirectDialExtension(ctx, tollFree)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	reg := NewRegistry(repo, "")
	seedTenant(t, repo, "t1")
	seedTenant(t, repo, "t2")

	require.NoError(t, repo.InsertNumber(ctx, PhoneNumber{ID: "n1", TenantID: "t2", E164: "+15125550101", Kind: NumberKindLocal, Active: true}))
	require.NoError(t, repo.InsertExtension(ctx, Extension{ID: "e1", TenantID: "t2", Code: "101", Name: "Jane", Active: true}))

	_, err := reg.OwnedNumber(ctx, "t1", "+15125550101")
	assert.ErrorIs(t, err, ErrNumberNotOwned)

	_, ok, err := reg.ActiveExtension(ctx, "t1", "101")
	require.NoError(t, err)
	assert.False(t, ok)

	dir, err := reg.Directory(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, dir)
}

func TestExtensionService_CreateValidates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	reg := NewRegistry(repo, "")
	svc := NewExtensionService(repo, reg)
	seedTenant(t, repo, "t1")
	require.NoError(t, repo.InsertNumber(ctx, PhoneNumber{ID: "n1", TenantID: "t1", E164: "+15125550101", Kind: NumberKindLocal, Active: true}))

	_, err := svc.Create(ctx, "t1", ExtensionInput{Code: "12", Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Create(ctx, "t1", ExtensionInput{Code: "101"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Create(ctx, "t1", ExtensionInput{Code: "101", Name: "Jane", ForwardTarget: "555-1234"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Create(ctx, "t1", ExtensionInput{Code: "101", Name: "Jane", AssignedNumber: "+19995550000"})
	assert.ErrorIs(t, err, ErrNumberNotOwned)

	e, err := svc.Create(ctx, "t1", ExtensionInput{Code: "101", Name: "Jane", Department: "Billing", AssignedNumber: "+15125550101", ForwardTarget: "+15125559999"})
	require.NoError(t, err)
	assert.True(t, e.Active)
	assert.Equal(t, "Jane in Billing", e.DisplayName())

	_, err = svc.Create(ctx, "t1", ExtensionInput{Code: "101", Name: "Other"})
	assert.ErrorIs(t, err, ErrDuplicateExtension)

	_, err = svc.Create(ctx, "t1", ExtensionInput{Code: "102", Name: "Other", AssignedNumber: "+15125550101"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExtensionService_UpdateAndDeactivate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	reg := NewRegistry(repo, "")
	svc := NewExtensionService(repo, reg)
	seedTenant(t, repo, "t1")

	_, err := svc.Create(ctx, "t1", ExtensionInput{Code: "200", Name: "Sales"})
	require.NoError(t, err)

	dept := "Sales"
	e, err := svc.Update(ctx, "t1", "200", ExtensionPatch{Department: &dept})
	require.NoError(t, err)
	assert.Equal(t, "Sales", e.Department)

	e, err = svc.Deactivate(ctx, "t1", "200")
	require.NoError(t, err)
	assert.False(t, e.Active)

	_, ok, err := reg.ActiveExtension(ctx, "t1", "200")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Update(ctx, "t2", "200", ExtensionPatch{Department: &dept})
	assert.ErrorIs(t, err, ErrNotFound)
}
