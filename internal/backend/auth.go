package backend

import (
	"context"
	"errors"
	"net/http"

	"estate-dashboard/internal/model"
)

var ErrBadLogin = errors.New("backend: login response missing token or role")

type LoginResult struct {
	Token    string
	Role     model.Role
	UserID   string
	UserName string
}

// Login exchanges credentials for a backend token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	in := map[string]string{"email": email, "password": password}
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID       string     `json:"_id"`
			Role     model.Role `json:"role"`
			UserName string     `json:"User_Name"`
		} `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/loginUser", nil, in, &out, true); err != nil {
		return nil, err
	}
	if out.Token == "" || out.User.Role == "" {
		return nil, ErrBadLogin
	}
	return &LoginResult{
		Token:    out.Token,
		Role:     out.User.Role,
		UserID:   out.User.ID,
		UserName: out.User.UserName,
	}, nil
}
