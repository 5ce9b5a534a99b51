package backend

import (
	"context"
	"encoding/json"
	"net/http"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
	Snake       string `json:"access_token"`
	Admin       *Admin `json:"admin"`
	User        *Admin `json:"user"`
	Data        *struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
		User        *Admin `json:"user"`
	} `json:"data"`
}

// Login exchanges credentials for a bearer token. Invalid credentials surface
// as ErrUnauthorized or a *ValidationError.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	req := c.request(ctx).SetBody(loginRequest{Email: email, Password: password})
	resp, err := c.send(req, http.MethodPost, "/auth/login")
	if err != nil {
		return LoginResult{}, err
	}
	var payload loginResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return LoginResult{}, ErrMalformedResponse
	}
	result := LoginResult{Token: firstNonEmpty(payload.Token, payload.AccessToken, payload.Snake)}
	switch {
	case payload.Admin != nil:
		result.Admin = *payload.Admin
	case payload.User != nil:
		result.Admin = *payload.User
	}
	if payload.Data != nil {
		if result.Token == "" {
			result.Token = firstNonEmpty(payload.Data.Token, payload.Data.AccessToken)
		}
		if result.Admin.Email == "" && payload.Data.User != nil {
			result.Admin = *payload.Data.User
		}
	}
	if result.Token == "" {
		return LoginResult{}, ErrMalformedResponse
	}
	if result.Admin.Email == "" {
		result.Admin.Email = email
	}
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
