package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// faultyManager serves users from a repository that times out.
type faultyManager struct {
	repomanager.RepositoryManager
}

func unavailableUsers(rm repomanager.RepositoryManager) repomanager.RepositoryManager {
	return &faultyManager{RepositoryManager: rm}
}

func (m *faultyManager) Users(dbx.DBTX) users.Repository {
	return timeoutUsers{}
}

type timeoutUsers struct{}

var errTimeout = fmt.Errorf("db error: %w", context.DeadlineExceeded)

func (timeoutUsers) Create(context.Context, *models.User) error { return errTimeout }

func (timeoutUsers) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, errTimeout
}

func (timeoutUsers) GetByUsername(context.Context, string) (*models.User, error) {
	return nil, errTimeout
}

func (timeoutUsers) GetByID(context.Context, string) (*models.User, error) {
	return nil, errTimeout
}

func (timeoutUsers) SetActive(context.Context, string, bool, time.Time) error {
	return errTimeout
}
