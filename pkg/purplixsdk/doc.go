/*
Package purplixsdk is a Go client for the purplix API.

# Client vs Session

The package is organized around two types:

  - Client: public endpoints (health, registration, the login handshake,
    survey retrieval and submission)
  - Session: endpoints that need a signed-in account

A Session is obtained by completing the challenge-response login:

	client := purplixsdk.NewClient("https://api.purplix.io")

	session, err := client.Login(ctx, purplixsdk.LoginInput{
		Email:      "alice@example.com",
		SigningKey: priv, // ed25519.PrivateKey
		OTP:        code,
	})

	me, err := session.Me(ctx)

The client never sees account secrets: survey answers, titles and canary
private keys travel as Sealed values that the caller encrypts beforehand.

# Errors

Non-2xx responses are returned as *apierr.Error, so errors.Is works against
the predefined values:

	if errors.Is(err, apierr.ErrSurveySubmitted) {
		// already answered from this browser, account or address
	}
*/
package purplixsdk
