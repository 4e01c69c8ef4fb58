package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testParams keep hashing fast in tests.
var testParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newApp(t *testing.T, token string) *fiber.App {
	t.Helper()

	hash, err := argon2id.CreateHash(token, testParams)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/", New(hash), func(c fiber.Ctx) error { return c.SendString("ok") })

	return app
}

func TestMiddleware(t *testing.T) {
	app := newApp(t, "s3cret-token")

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid", header: "Bearer s3cret-token", status: fiber.StatusOK},
		{name: "valid again uses cache", header: "Bearer s3cret-token", status: fiber.StatusOK},
		{name: "scheme is case insensitive", header: "bearer s3cret-token", status: fiber.StatusOK},
		{name: "wrong token", header: "Bearer nope", status: fiber.StatusUnauthorized},
		{name: "missing header", header: "", status: fiber.StatusUnauthorized},
		{name: "basic scheme", header: "Basic czNjcmV0", status: fiber.StatusUnauthorized},
		{name: "prefix only", header: "Bearer ", status: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestVerifierCachesAcceptedToken(t *testing.T) {
	hash, err := argon2id.CreateHash("token", testParams)
	require.NoError(t, err)

	v := &verifier{hash: hash}
	assert.Nil(t, v.accepted.Load())

	assert.True(t, v.verify("token"))
	assert.NotNil(t, v.accepted.Load())

	assert.False(t, v.verify("other"))
	assert.True(t, v.verify("token"))
}

func TestVerifierInvalidHash(t *testing.T) {
	v := &verifier{hash: "not-a-hash"}

	assert.False(t, v.verify("token"))
}

func TestHashToken(t *testing.T) {
	hash, err := HashToken("token")
	require.NoError(t, err)

	match, err := argon2id.ComparePasswordAndHash("token", hash)
	require.NoError(t, err)
	assert.True(t, match)
}
