package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/unibox/internal/models"
	"github.com/maheshrc27/unibox/internal/platform"
	"github.com/maheshrc27/unibox/internal/repository"
	"github.com/maheshrc27/unibox/internal/vault"
)

// AccountService manages connected platform accounts. OAuth consent flows
// live outside this service; it receives already-exchanged credentials.
type AccountService interface {
	List(ctx context.Context, userID int64) ([]*models.PlatformAccount, error)
	// ConnectWhatsApp validates the supplied Business API credentials and
	// stores them encrypted. WhatsApp connects with direct credentials, not
	// an OAuth code.
	ConnectWhatsApp(ctx context.Context, userID int64, phoneNumberID, businessAccountID, accessToken string) (*models.PlatformAccount, error)
	// Disconnect deactivates the account. Accounts are never hard-deleted;
	// conversations and messages stay browsable.
	Disconnect(ctx context.Context, userID, accountID int64) error
}

type accountService struct {
	accounts repository.PlatformAccountRepository
	adapters platform.Registry
	vault    *vault.Vault
}

func NewAccountService(accounts repository.PlatformAccountRepository, adapters platform.Registry, v *vault.Vault) AccountService {
	return &accountService{accounts: accounts, adapters: adapters, vault: v}
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	if userID == 0 {
		return nil, errors.New("userID is not valid")
	}
	return s.accounts.ListByUserID(ctx, userID)
}

func (s *accountService) ConnectWhatsApp(ctx context.Context, userID int64, phoneNumberID, businessAccountID, accessToken string) (*models.PlatformAccount, error) {
	if phoneNumberID == "" || accessToken == "" {
		return nil, errors.New("phone number id and access token are required")
	}

	adapter, ok := s.adapters.Get(models.PlatformWhatsApp)
	if !ok {
		return nil, ErrUnsupportedPlatform
	}
	validator, ok := adapter.(platform.CredentialValidator)
	if !ok {
		return nil, ErrUnsupportedPlatform
	}

	info, err := validator.ValidateCredentials(ctx, phoneNumberID, accessToken)
	if err != nil {
		return nil, fmt.Errorf("connect whatsapp: %w", err)
	}

	encryptedToken, err := s.vault.EncryptIfNeeded(accessToken)
	if err != nil {
		return nil, err
	}

	account := &models.PlatformAccount{
		UserID:           userID,
		Platform:         models.PlatformWhatsApp,
		PlatformUserID:   phoneNumberID,
		PlatformUsername: info.VerifiedName,
		AccessToken:      encryptedToken,
		// WhatsApp system user tokens do not expire on a fixed schedule.
		TokenExpiresAt: sql.NullTime{},
		IsActive:       true,
		Metadata: models.Metadata{
			"business_account_id":  businessAccountID,
			"display_phone_number": info.DisplayPhoneNumber,
			"quality_rating":       info.QualityRating,
		},
	}

	id, err := s.accounts.Create(ctx, account)
	if err != nil {
		return nil, err
	}
	account.ID = id
	account.CreatedAt = time.Now()
	return account, nil
}

func (s *accountService) Disconnect(ctx context.Context, userID, accountID int64) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}
	if account.UserID != userID {
		return ErrNotOwner
	}
	return s.accounts.Deactivate(ctx, accountID)
}
