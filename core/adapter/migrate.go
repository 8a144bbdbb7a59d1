package adapter

import (
	"context"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
	"github.com/mistrzwujo098/quiz-sub001/storage/remote"
)

// MigrationResult counts what a user migration did.
type MigrationResult struct {
	Copied   int // profiles added to the target store
	Skipped  int // usernames already present in the target store
	Accounts int // remote auth accounts created
}

// PushUsers copies the local users missing from the remote store, matched by username,
// and gives every remote profile holding a digest but no auth account one keyed by that
// digest. It works in either mode and needs no session.
func (a *Adapter) PushUsers(ctx context.Context) (MigrationResult, error) {
	var res MigrationResult
	if a.remote == nil {
		return res, core.NewStoreError(core.Unavailable, "push users", errNotConfigured)
	}
	localUsers, err := a.local.store.Users()
	if err != nil {
		return res, err
	}
	remoteUsers, err := a.remote.listUsers(ctx, nil)
	if err != nil {
		return res, err
	}

	taken := make(map[string]bool, len(remoteUsers))
	for _, u := range remoteUsers {
		taken[u.Username] = true
	}
	for i := range localUsers {
		usr := localUsers[i]
		if taken[usr.Username] {
			res.Skipped++
			continue
		}
		// createUser opens the account along with the profile
		if _, err = a.remote.createUser(ctx, &usr); err != nil {
			return res, err
		}
		res.Copied++
		if usr.PasswordHash != "" {
			res.Accounts++
		}
	}

	for i := range remoteUsers {
		created, err := a.remote.ensureAccount(ctx, &remoteUsers[i])
		if err != nil {
			return res, err
		}
		if created {
			res.Accounts++
		}
	}
	a.logger.Info("users pushed to the remote store", map[string]interface{}{
		"copied": res.Copied, "skipped": res.Skipped, "accounts": res.Accounts,
	})
	return res, nil
}

// PullUsers copies the remote users missing from the local store, matched by username.
// Their digests come along, so they sign in locally with the same password.
func (a *Adapter) PullUsers(ctx context.Context) (MigrationResult, error) {
	var res MigrationResult
	if a.remote == nil {
		return res, core.NewStoreError(core.Unavailable, "pull users", errNotConfigured)
	}
	remoteUsers, err := a.remote.listUsers(ctx, nil)
	if err != nil {
		return res, err
	}
	err = a.local.store.UpdateUsers(func(users []user.User) ([]user.User, error) {
		res = MigrationResult{}
		taken := make(map[string]bool, len(users))
		for _, u := range users {
			taken[u.Username] = true
		}
		for _, u := range remoteUsers {
			if taken[u.Username] {
				res.Skipped++
				continue
			}
			users = append(users, u)
			res.Copied++
		}
		return users, nil
	})
	if err != nil {
		return MigrationResult{}, err
	}
	a.logger.Info("users pulled from the remote store", map[string]interface{}{
		"copied": res.Copied, "skipped": res.Skipped,
	})
	return res, nil
}

// ensureAccount creates the auth account of usr from its digest when it has none.
func (b *remoteBackend) ensureAccount(ctx context.Context, usr *user.User) (bool, error) {
	if usr.PasswordHash == "" {
		return false, nil
	}
	_, err := b.client.Single(ctx, remote.TableAccounts, remote.Eq{"user_id": usr.ID}, remote.Columns("id"))
	switch {
	case err == nil:
		return false, nil
	case !remote.IsNoRows(err):
		return false, storeError("look up account", err)
	}
	if _, err = b.client.Auth().CreateAccount(ctx, accountEmail(usr), usr.PasswordHash, usr.ID); err != nil {
		return false, storeError("create user account", err)
	}
	return true, nil
}
