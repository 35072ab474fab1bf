package auth

// AccessCookieName is the cookie the external session issuer writes the
// access token into. This service only reads it (middleware RequireAuth);
// issuing and clearing the cookie happens upstream.
const AccessCookieName = "gc_access"
