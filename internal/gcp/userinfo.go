package gcp

import (
	"context"
	"fmt"

	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// UserInfo is the subset of the OpenID userinfo document the dashboard shows.
type UserInfo struct {
	ID      string
	Email   string
	Name    string
	Picture string
	Domain  string
}

type UserInfoClient struct {
	svc   *oauth2api.Service
	guard *Guard
}

func newUserInfoClient(ctx context.Context, f *Factory, opts []option.ClientOption) (*UserInfoClient, error) {
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create userinfo client: %w", err)
	}
	return &UserInfoClient{svc: svc, guard: f.guard}, nil
}

func (c *UserInfoClient) Get(ctx context.Context) (UserInfo, error) {
	info, err := run(ctx, c.guard, ServiceOAuth2, "userinfo.get", func(ctx context.Context) (*oauth2api.Userinfo, error) {
		return c.svc.Userinfo.Get().Context(ctx).Do()
	})
	if err != nil {
		return UserInfo{}, userInfoError(err)
	}
	return UserInfo{
		ID:      info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
		Domain:  info.Hd,
	}, nil
}
