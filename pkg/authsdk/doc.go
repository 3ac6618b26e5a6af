/*
Package authsdk provides a client SDK for the auth service.

# Overview

The service keeps one server-side session per signed-in device. A session is
carried by two cookies: a short-lived accessToken and a long-lived
refreshToken. Client holds both in a cookie jar, so a Go program can drive the
HTTP surface the same way a browser does.

	client, err := authsdk.NewClient("https://auth.example.com")

	_, err = client.Register(ctx, authsdk.RegisterRequest{
		FirstName: "Alice", LastName: "Liddell",
		Email: "alice@example.com", Password: "Abc12345!",
	})

	resp, err := client.Login(ctx, authsdk.LoginRequest{
		Email: "alice@example.com", Password: "Abc12345!",
	})
	if resp.Requires2FA {
		resp, err = client.LoginTwoFactor(ctx, authsdk.TwoFactorLoginRequest{
			TempToken: resp.TempToken, Code: otpCode,
		})
	}

	me, err := client.Me(ctx)
	sessions, err := client.Sessions(ctx)

# Token Refresh

When an authenticated call fails with TOKEN_EXPIRED, Client asks its
RefreshCoordinator for a fresh access token and replays the call once.
The coordinator is single-flight: however many goroutines observe the expiry,
only one POST /refresh-token is made. Every waiter gets the new token, or
every waiter gets the same error when the refresh fails.

A failed refresh is terminal. The coordinator stays in StateRefreshFailed and
returns ErrRefreshFailed until a new login installs a token. Refreshes are
never retried, because retrying a rejected refresh token cannot succeed.

Only TOKEN_EXPIRED triggers a refresh. INVALID_TOKEN and SESSION_REVOKED are
returned to the caller as they are.

# Error Handling

Every failure from the service is an *APIError with a stable Code:

	_, err := client.Me(ctx)
	switch {
	case authsdk.HasCode(err, authsdk.CodeSessionRevoked):
		// log in again
	case errors.Is(err, authsdk.ErrRateLimited):
		// back off
	}

The same type is used by the server to write error responses, so codes and
messages stay in step on both sides.
*/
package authsdk
