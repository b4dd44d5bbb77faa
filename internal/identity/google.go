// This file verifies Google Sign-In ID tokens.
//
// The client signs the person in with Google and sends us the resulting ID token, a
// JWT signed by Google. google.golang.org/api/idtoken checks the signature against
// Google's published keys (fetched and cached), the expiry, and that the token was
// issued for our OAuth client id. Nothing here talks to Google on the person's
// behalf; there is no access token and no client secret involved.

package identity

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

// GoogleVerifier validates Google Sign-In ID tokens against Google's published signing keys
// and checks the audience is this app's OAuth client id.
type GoogleVerifier struct {
	clientID string                                                                      // expected "aud" claim
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error) // idtoken.Validate in production
}

// NewGoogleVerifier returns a verifier for tokens issued to clientID.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

// Verify validates token and maps its claims onto a FederatedClaim.
func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*FederatedClaim, error) {
	// Without a client id any Google token for any app would be accepted; refuse instead.
	if g.clientID == "" {
		return nil, errors.New("google sign-in is not configured")
	}
	// idtoken fetches and caches Google's public keys, then checks signature, expiry,
	// issuer and audience.
	p, err := g.validate(ctx, token, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("validate google id token: %w", err)
	}
	return &FederatedClaim{
		Subject:       p.Subject,
		Email:         stringClaim(p.Claims, "email"),
		EmailVerified: boolClaim(p.Claims, "email_verified"),
		GivenName:     stringClaim(p.Claims, "given_name"),
		FamilyName:    stringClaim(p.Claims, "family_name"),
		Picture:       stringClaim(p.Claims, "picture"),
	}, nil
}

// stringClaim reads a string claim, or "" when it is missing or not a string.
func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// boolClaim accepts both JSON booleans and the "true" strings some Google tokens carry.
func boolClaim(claims map[string]any, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
