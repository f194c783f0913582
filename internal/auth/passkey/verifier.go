// Package passkey wraps the WebAuthn engine behind ceremony-level
// operations: minting options for registration and login, and verifying the
// signed responses that come back.
package passkey

import (
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/gatehouse-auth/gatehouse/internal/auth/credential"
	"github.com/gatehouse-auth/gatehouse/internal/auth/storage"
	"github.com/gatehouse-auth/gatehouse/internal/auth/user"
	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

// Verifier owns the WebAuthn relying party engine.
type Verifier struct {
	config Config
	wa     *webauthn.WebAuthn
}

// NewVerifier builds a Verifier for the configured relying party.
func NewVerifier(config Config) (*Verifier, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: config.RPDisplayName,
		RPID:          config.RPID,
		RPOrigins:     []string{config.RPOrigin},
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &Verifier{config: config, wa: wa}, nil
}

// ceremonyUser adapts an account and its enrolled credentials to the
// WebAuthn engine's user contract.
type ceremonyUser struct {
	user        user.User
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.user.Email
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.user.DisplayName
}

func (u *ceremonyUser) WebAuthnIcon() string {
	return ""
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func newCeremonyUser(base user.User, enrolled []credential.Credential) (*ceremonyUser, error) {
	credentials := make([]webauthn.Credential, 0, len(enrolled))
	for _, c := range enrolled {
		converted, err := toWebAuthnCredential(c)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, converted)
	}
	return &ceremonyUser{user: base, credentials: credentials}, nil
}

func toWebAuthnCredential(c credential.Credential) (webauthn.Credential, error) {
	rawID, err := credential.DecodeID(c.ID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode credential id %s: %w", c.ID, err)
	}
	transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
	for _, t := range c.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}
	return webauthn.Credential{
		ID:        rawID,
		PublicKey: c.PublicKey,
		Transport: transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			UserVerified:   true,
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}, nil
}

// RegistrationOptions mints attestation ceremony options for an account.
// Enrolled credentials are excluded so an authenticator cannot enroll twice.
// The returned session carries the challenge the caller must persist.
func (v *Verifier) RegistrationOptions(base user.User, enrolled []credential.Credential) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	cu, err := newCeremonyUser(base, enrolled)
	if err != nil {
		return nil, nil, err
	}
	options := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	}
	if len(cu.credentials) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(cu.credentials).CredentialDescriptors()))
	}
	creation, session, err := v.wa.BeginRegistration(cu, options...)
	if err != nil {
		return nil, nil, fmt.Errorf("begin registration: %w", err)
	}
	return creation, session, nil
}

// LoginOptions mints assertion ceremony options restricted to the account's
// enrolled credentials.
func (v *Verifier) LoginOptions(base user.User, enrolled []credential.Credential) (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	cu, err := newCeremonyUser(base, enrolled)
	if err != nil {
		return nil, nil, err
	}
	assertion, session, err := v.wa.BeginLogin(cu)
	if err != nil {
		return nil, nil, fmt.Errorf("begin login: %w", err)
	}
	return assertion, session, nil
}

// DiscoverableLoginOptions mints assertion ceremony options with no
// credential allow-list, for logins where the account is not yet known.
func (v *Verifier) DiscoverableLoginOptions() (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	assertion, session, err := v.wa.BeginDiscoverableLogin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin discoverable login: %w", err)
	}
	return assertion, session, nil
}

// ParseRegistrationResponse decodes a raw attestation response.
func ParseRegistrationResponse(response []byte) (*protocol.ParsedCredentialCreationData, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSignatureInvalid, "credential response could not be parsed", err)
	}
	return parsed, nil
}

// ParseAuthenticationResponse decodes a raw assertion response.
func ParseAuthenticationResponse(response []byte) (*protocol.ParsedCredentialAssertionData, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSignatureInvalid, "credential response could not be parsed", err)
	}
	return parsed, nil
}

// VerifyRegistration checks an attestation response against its consumed
// challenge and returns the credential to enroll. The caller names it.
func (v *Verifier) VerifyRegistration(base user.User, enrolled []credential.Credential, chal storage.Challenge, parsed *protocol.ParsedCredentialCreationData) (credential.Credential, error) {
	client := parsed.Response.CollectedClientData
	if client.Type != protocol.CreateCeremony {
		return credential.Credential{}, apperrors.WithMetadata(
			apperrors.CodeChallengeTypeMismatch,
			"challenge was not issued for registration",
			map[string]string{"Type": string(client.Type)},
		)
	}
	if client.Challenge != chal.Value {
		return credential.Credential{}, apperrors.New(apperrors.CodeChallengeNotFound, "challenge not found or expired")
	}
	if client.Origin != v.config.RPOrigin {
		return credential.Credential{}, apperrors.WithMetadata(
			apperrors.CodeOriginMismatch,
			"response origin does not match the relying party",
			map[string]string{"Origin": client.Origin},
		)
	}

	cu, err := newCeremonyUser(base, enrolled)
	if err != nil {
		return credential.Credential{}, err
	}
	// The session is rebuilt from the consumed challenge rather than
	// persisted whole. CredParams must carry the accepted algorithms or the
	// attestation's public-key check matches nothing.
	session := webauthn.SessionData{
		Challenge:  chal.Value,
		UserID:     cu.WebAuthnID(),
		Expires:    chal.ExpiresAt,
		CredParams: webauthn.CredentialParametersDefault(),
	}
	created, err := v.wa.CreateCredential(cu, session, parsed)
	if err != nil {
		return credential.Credential{}, apperrors.Wrap(apperrors.CodeSignatureInvalid, "credential attestation rejected", err)
	}

	category := credential.CategoryCrossPlatform
	if parsed.AuthenticatorAttachment == protocol.Platform {
		category = credential.CategoryPlatform
	}
	transports := make([]string, 0, len(created.Transport))
	for _, t := range created.Transport {
		transports = append(transports, string(t))
	}
	return credential.Credential{
		ID:             credential.EncodeID(created.ID),
		UserID:         base.ID,
		PublicKey:      created.PublicKey,
		SignCount:      created.Authenticator.SignCount,
		Category:       category,
		Transports:     transports,
		AAGUID:         created.Authenticator.AAGUID,
		BackupEligible: created.Flags.BackupEligible,
		BackupState:    created.Flags.BackupState,
	}, nil
}

// VerifyAuthentication checks an assertion response against its consumed
// challenge and the account's enrolled credentials. It returns the matched
// credential and the authenticator's new signature counter, which the caller
// must persist. A counter that fails to increase is a clone signal and fails
// verification outright.
func (v *Verifier) VerifyAuthentication(base user.User, enrolled []credential.Credential, chal storage.Challenge, parsed *protocol.ParsedCredentialAssertionData) (credential.Credential, uint32, error) {
	client := parsed.Response.CollectedClientData
	if client.Type != protocol.AssertCeremony {
		return credential.Credential{}, 0, apperrors.WithMetadata(
			apperrors.CodeChallengeTypeMismatch,
			"challenge was not issued for authentication",
			map[string]string{"Type": string(client.Type)},
		)
	}
	if client.Challenge != chal.Value {
		return credential.Credential{}, 0, apperrors.New(apperrors.CodeChallengeNotFound, "challenge not found or expired")
	}
	if client.Origin != v.config.RPOrigin {
		return credential.Credential{}, 0, apperrors.WithMetadata(
			apperrors.CodeOriginMismatch,
			"response origin does not match the relying party",
			map[string]string{"Origin": client.Origin},
		)
	}

	credentialID := credential.EncodeID(parsed.RawID)
	var matched credential.Credential
	found := false
	for _, c := range enrolled {
		if c.ID == credentialID {
			matched = c
			found = true
			break
		}
	}
	if !found {
		return credential.Credential{}, 0, apperrors.New(apperrors.CodeCredentialNotRecognized, "credential is not enrolled")
	}

	cu, err := newCeremonyUser(base, enrolled)
	if err != nil {
		return credential.Credential{}, 0, err
	}
	session := webauthn.SessionData{
		Challenge: chal.Value,
		UserID:    cu.WebAuthnID(),
		Expires:   chal.ExpiresAt,
	}
	if _, err := v.wa.ValidateLogin(cu, session, parsed); err != nil {
		return credential.Credential{}, 0, apperrors.Wrap(apperrors.CodeSignatureInvalid, "credential assertion rejected", err)
	}

	newCount := parsed.Response.AuthenticatorData.Counter
	if !counterAdvances(matched.SignCount, newCount) {
		return credential.Credential{}, 0, apperrors.WithMetadata(
			apperrors.CodeCounterNotIncrementing,
			"signature counter did not increase",
			map[string]string{
				"Stored":   fmt.Sprintf("%d", matched.SignCount),
				"Asserted": fmt.Sprintf("%d", newCount),
			},
		)
	}
	return matched, newCount, nil
}

// counterAdvances applies the signature counter rule: the asserted value
// must strictly exceed the stored one, except when the authenticator does
// not implement counters and both remain zero.
func counterAdvances(stored, asserted uint32) bool {
	if asserted == 0 && stored == 0 {
		return true
	}
	return asserted > stored
}
