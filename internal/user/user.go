package user

import (
	"context"

	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/user"
)

type RepositoryAPI interface {
	Get(ctx context.Context, id int64) (*user.User, error)
}

// Directory answers name and email lookups for certificates and
// notifications.
type Directory struct {
	repo RepositoryAPI
}

func NewDirectory(repo RepositoryAPI) *Directory {
	return &Directory{repo: repo}
}

func (d *Directory) UserName(ctx context.Context, userID int64) (string, error) {
	u, err := d.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

func (d *Directory) UserEmail(ctx context.Context, userID int64) (string, error) {
	u, err := d.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}
