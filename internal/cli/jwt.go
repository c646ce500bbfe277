// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-trustkit.
//
// go-trustkit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwe"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwt"
	"github.com/spf13/cobra"
)

func newJWTCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jwt",
		Short: "Issue and validate JSON Web Tokens",
	}
	cmd.AddCommand(newJWTSignCmd(a), newJWTVerifyCmd(a))
	return cmd
}

func newJWTSignCmd(a *app) *cobra.Command {
	var (
		kf       keyFlags
		encKey   keyFlags
		alg      string
		claims   string
		issuer   string
		subject  string
		audience []string
		ttl      time.Duration
		enc      string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Issue a signed JWT",
		Long: `Issue a JWT carrying iat, nbf, a random jti and the registered claims
given by flags. --claims adds custom claims from a JSON object, inline or
in a file. --encrypt-key or --encrypt-kid wraps the token in a JWE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.loadKey(&kf)
			if err != nil {
				return err
			}
			if issuer == "" {
				issuer = a.cfg.STS.Issuer
			}
			c := jwt.NewClaims(issuer, subject, audience, ttl)
			if claims != "" {
				extra, err := readClaims(cmd, claims)
				if err != nil {
					return err
				}
				maps.Copy(c, extra)
			}

			opts := []jwt.Option{jwt.WithLogger(a.log)}
			sigAlg, err := a.signatureAlgorithm(alg)
			if err != nil {
				return err
			}
			if sigAlg != "" {
				opts = append(opts, jwt.WithAlgorithm(sigAlg))
			}
			if encKey.path != "" || encKey.kid != "" {
				recipient, err := a.loadKey(&encKey)
				if err != nil {
					return err
				}
				keyAlg, err := defaultKeyAlgorithm(recipient, jwa.KeyAlgorithm(a.cfg.JOSE.KeyAlgorithm))
				if err != nil {
					return err
				}
				provider, err := jwe.NewKeyEncryptionProvider(recipient, keyAlg)
				if err != nil {
					return err
				}
				contentAlg, err := a.contentAlgorithm(enc)
				if err != nil {
					return err
				}
				opts = append(opts, jwt.WithEncryption(provider, contentAlg))
			}

			token, err := jwt.Sign(key, c, opts...)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			return a.printer.PrintToken("jwt", token)
		},
	}
	addKeyFlags(cmd, &kf, "signing key")
	cmd.Flags().StringVar(&encKey.path, "encrypt-key", "", "recipient key file for a nested JWE")
	cmd.Flags().StringVar(&encKey.kid, "encrypt-kid", "", "recipient key store id for a nested JWE")
	cmd.Flags().StringVar(&enc, "enc", "", "content encryption algorithm for a nested JWE")
	cmd.Flags().StringVar(&alg, "alg", "", "signature algorithm")
	cmd.Flags().StringVar(&claims, "claims", "", "custom claims: a JSON object or a file")
	cmd.Flags().StringVar(&issuer, "iss", "", "issuer (default: sts.issuer)")
	cmd.Flags().StringVar(&subject, "sub", "", "subject")
	cmd.Flags().StringSliceVar(&audience, "aud", nil, "audience (repeat or comma separate)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "lifetime; 0 omits exp")
	return cmd
}

// readClaims parses inline JSON claims, or reads them from a file.
func readClaims(cmd *cobra.Command, value string) (jwt.Claims, error) {
	data := []byte(value)
	if !strings.HasPrefix(strings.TrimSpace(value), "{") {
		var err error
		if data, err = readInput(cmd, value); err != nil {
			return nil, err
		}
	}
	return jwt.ParseClaims(data)
}

func newJWTVerifyCmd(a *app) *cobra.Command {
	var (
		kf         keyFlags
		decKey     keyFlags
		alg        string
		in         string
		issuer     string
		subject    string
		audience   string
		requireExp bool
	)
	cmd := &cobra.Command{
		Use:   "verify [token]",
		Short: "Validate a JWT and print its claims",
		Long: `Verify the signature and registered claims of a JWT given as an
argument, with --in, or on standard input. The configured jose.leeway is
applied to exp, nbf and iat. Without --key or --kid the "kid" header selects
the key from the key store. Nested JWE tokens need --decrypt-key or
--decrypt-kid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := argOrEmpty(args)
			if token == "" {
				data, err := readInput(cmd, in)
				if err != nil {
					return err
				}
				token = string(data)
			}
			token = strings.TrimSpace(token)

			opts := a.jwtVerifyOptions()
			if issuer != "" {
				opts = append(opts, jwt.WithIssuer(issuer))
			}
			if subject != "" {
				opts = append(opts, jwt.WithSubject(subject))
			}
			if audience != "" {
				opts = append(opts, jwt.WithAudience(audience))
			}
			if requireExp {
				opts = append(opts, jwt.WithExpirationRequired())
			}
			if alg != "" {
				sigAlg, err := jwa.ParseSignatureAlgorithm(alg)
				if err != nil {
					return err
				}
				opts = append(opts, jwt.WithAlgorithm(sigAlg))
			}

			if decKey.path != "" || decKey.kid != "" {
				recipient, err := a.loadKey(&decKey)
				if err != nil {
					return err
				}
				keyAlg := jwa.KeyAlgorithm(recipient.Alg)
				if keyAlg == "" {
					h, err := jwe.PeekHeaders(token)
					if err != nil {
						return fmt.Errorf("token is not a JWE: %w", err)
					}
					keyAlg = jwa.KeyAlgorithm(h.Algorithm())
				}
				provider, err := jwe.NewKeyDecryptionProvider(recipient, keyAlg)
				if err != nil {
					return err
				}
				opts = append(opts, jwt.WithDecryption(provider), jwt.WithRequiredEncryption())
			} else if kf.path == "" && kf.kid == "" {
				kid, err := jwt.ExtractKeyID(token)
				if err != nil {
					return fmt.Errorf("a key is required: use --key or --kid")
				}
				kf.kid = kid
			}

			key, err := a.loadKey(&kf)
			if err != nil {
				return err
			}
			tok, err := jwt.Verify(key, token, opts...)
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
			return a.printer.PrintClaims(tok)
		},
	}
	addKeyFlags(cmd, &kf, "verification key")
	cmd.Flags().StringVar(&decKey.path, "decrypt-key", "", "private key file for a nested JWE")
	cmd.Flags().StringVar(&decKey.kid, "decrypt-kid", "", "private key store id for a nested JWE")
	cmd.Flags().StringVar(&alg, "alg", "", "expected signature algorithm")
	cmd.Flags().StringVar(&in, "in", "", "token file (default: standard input)")
	cmd.Flags().StringVar(&issuer, "iss", "", "required issuer")
	cmd.Flags().StringVar(&subject, "sub", "", "required subject")
	cmd.Flags().StringVar(&audience, "aud", "", "required audience")
	cmd.Flags().BoolVar(&requireExp, "require-exp", false, "reject tokens without exp")
	return cmd
}
