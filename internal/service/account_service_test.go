package service

import (
	"context"
	"errors"
	"testing"

	"github.com/maheshrc27/unibox/internal/models"
	"github.com/maheshrc27/unibox/internal/platform"
	"github.com/stretchr/testify/require"
)

// credentialAdapter validates WhatsApp Business credentials.
type credentialAdapter struct {
	fakeAdapter
	info *platform.PhoneNumberInfo
	err  error
}

func (a *credentialAdapter) ValidateCredentials(ctx context.Context, accountRef, token string) (*platform.PhoneNumberInfo, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.info, nil
}

func TestConnectWhatsAppStoresEncryptedToken(t *testing.T) {
	accounts := newFakeAccountRepo()
	adapter := &credentialAdapter{
		fakeAdapter: fakeAdapter{platformTag: models.PlatformWhatsApp},
		info: &platform.PhoneNumberInfo{
			PhoneNumberID:      "phone_1",
			VerifiedName:       "Acme Support",
			DisplayPhoneNumber: "15550001111",
			QualityRating:      "GREEN",
		},
	}
	v := testVault()

	svc := NewAccountService(accounts, platform.Registry{models.PlatformWhatsApp: adapter}, v)

	account, err := svc.ConnectWhatsApp(context.Background(), 7, "phone_1", "waba_1", "raw-token")
	require.NoError(t, err)
	require.Equal(t, models.PlatformWhatsApp, account.Platform)
	require.Equal(t, "phone_1", account.PlatformUserID)
	require.Equal(t, "Acme Support", account.PlatformUsername)
	require.True(t, account.IsActive)
	require.False(t, account.TokenExpiresAt.Valid)
	require.Equal(t, "waba_1", account.Metadata.GetString("business_account_id"))

	// Never the raw token at rest.
	require.NotEqual(t, "raw-token", account.AccessToken)
	decrypted, err := v.Decrypt(account.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "raw-token", decrypted)
}

func TestConnectWhatsAppRejectsBadCredentials(t *testing.T) {
	accounts := newFakeAccountRepo()
	adapter := &credentialAdapter{
		fakeAdapter: fakeAdapter{platformTag: models.PlatformWhatsApp},
		err:         errors.New("graph api error (400, code 190): Invalid OAuth access token"),
	}

	svc := NewAccountService(accounts, platform.Registry{models.PlatformWhatsApp: adapter}, testVault())

	_, err := svc.ConnectWhatsApp(context.Background(), 7, "phone_1", "waba_1", "bad-token")
	require.Error(t, err)

	listed, err := svc.List(context.Background(), 7)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestDisconnectDeactivatesWithoutDeleting(t *testing.T) {
	account := instagramTestAccount()
	accounts := newFakeAccountRepo(account)

	svc := NewAccountService(accounts, platform.Registry{}, testVault())

	require.NoError(t, svc.Disconnect(context.Background(), 7, account.ID))

	stored, err := accounts.GetByID(context.Background(), account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.False(t, stored.IsActive)
}

func TestDisconnectOwnership(t *testing.T) {
	account := instagramTestAccount()
	accounts := newFakeAccountRepo(account)

	svc := NewAccountService(accounts, platform.Registry{}, testVault())

	err := svc.Disconnect(context.Background(), 99, account.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	err = svc.Disconnect(context.Background(), 7, 12345)
	require.ErrorIs(t, err, ErrAccountNotFound)
}
