/*
Package verify implements the per-source Signature Verifier of spec.md
§4.5: an HMAC variant for the "t=<ts>,v1=<hex>" header shape, a
shared-secret variant for a plain constant-time header compare, and a
no-op pass-through used only when no secret is configured (logged once as
a startup warning).
*/
package verify
