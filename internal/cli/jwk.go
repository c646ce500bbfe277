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
	"strings"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwe"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/spf13/cobra"
)

func newJWKCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jwk",
		Short: "Manage JSON Web Keys",
		Long: `Generate, import and export JSON Web Keys. Keys are printed as
JSON, or saved to the configured key store with --store.`,
	}
	cmd.AddCommand(
		newJWKGenerateCmd(a),
		newJWKImportCmd(a),
		newJWKExportCmd(a),
		newJWKPublicCmd(a),
		newJWKThumbprintCmd(a),
		newJWKListCmd(a),
		newJWKDeleteCmd(a),
		newJWKEncryptSetCmd(a),
		newJWKDecryptSetCmd(a),
	)
	return cmd
}

// addKeyFlags registers --key, --kid and --key-password on cmd.
func addKeyFlags(cmd *cobra.Command, kf *keyFlags, usage string) {
	cmd.Flags().StringVar(&kf.path, "key", "", usage+" (JWK or PEM file)")
	cmd.Flags().StringVar(&kf.kid, "kid", "", usage+" (key store id)")
	cmd.Flags().StringVar(&kf.password, "key-password", "", "password of an encrypted PEM key")
}

func newJWKGenerateCmd(a *app) *cobra.Command {
	var (
		kty   string
		size  int
		crv   string
		alg   string
		use   string
		kid   string
		store bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new key",
		Long: `Generate an RSA, EC, OKP or symmetric (oct) key.

--size is the modulus length in bits for RSA and the key length in bytes
for oct keys. --crv selects P-256, P-384 or P-521 for EC and Ed25519 or
X25519 for OKP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := generateKey(jwk.KeyType(kty), size, jwk.Curve(crv), alg)
			if err != nil {
				return err
			}
			if kid == "" {
				kid = uuid.NewString()
			}
			key = key.WithKeyID(kid)
			if alg != "" {
				key = key.WithAlgorithm(alg)
			}
			if use != "" {
				key = key.WithUse(use)
			}
			if !store {
				return a.printer.PrintJWK(key)
			}
			return a.saveKey(key)
		},
	}
	cmd.Flags().StringVar(&kty, "kty", string(jwk.KeyTypeEC), "key type (RSA, EC, OKP, oct)")
	cmd.Flags().IntVar(&size, "size", 0, "RSA bits (default 2048) or oct bytes (default 32)")
	cmd.Flags().StringVar(&crv, "crv", "", "curve (default P-256 for EC, Ed25519 for OKP)")
	cmd.Flags().StringVar(&alg, "alg", "", "intended algorithm (alg)")
	cmd.Flags().StringVar(&use, "use", "", "public key use (sig, enc)")
	cmd.Flags().StringVar(&kid, "kid", "", "key id (default: random UUID)")
	cmd.Flags().BoolVar(&store, "store", false, "save the key to the key store instead of printing it")
	return cmd
}

func generateKey(kty jwk.KeyType, size int, crv jwk.Curve, alg string) (*jwk.JWK, error) {
	switch kty {
	case jwk.KeyTypeRSA:
		if size == 0 {
			size = 2048
		}
		return jwk.GenerateRSA(size)
	case jwk.KeyTypeEC:
		if crv == "" {
			crv = jwk.CurveP256
		}
		return jwk.GenerateEC(crv)
	case jwk.KeyTypeOKP:
		if crv == "" {
			crv = jwk.CurveEd25519
		}
		return jwk.GenerateOKP(crv)
	case jwk.KeyTypeOct:
		if size == 0 {
			size = 32
		}
		return jwk.GenerateOctet(size, alg)
	default:
		return nil, fmt.Errorf("unsupported key type: %s", kty)
	}
}

// saveKey writes key to the key store and reports its id.
func (a *app) saveKey(key *jwk.JWK) error {
	ks, err := a.keyStore()
	if err != nil {
		return err
	}
	defer func() { _ = ks.Close() }()
	if err := ks.Save(key); err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}
	a.log.Info("key stored", logger.KeyID(key.Kid))
	return a.printer.PrintSuccess(fmt.Sprintf("Key %s stored", key.Kid))
}

func newJWKImportCmd(a *app) *cobra.Command {
	var (
		password string
		kid      string
		store    bool
	)
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a PEM key or certificate as a JWK",
		Long: `Convert a PEM private key, public key or certificate chain to a JWK.
Certificates populate x5c and x5t#S256. Reads standard input when no file
is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, argOrEmpty(args))
			if err != nil {
				return err
			}
			key, err := encoding.ImportPEM(data, passwordBytes(password))
			if err != nil {
				return fmt.Errorf("failed to import key: %w", err)
			}
			if kid != "" {
				key = key.WithKeyID(kid)
			}
			if key.Kid == "" {
				tp, err := key.ThumbprintSHA256()
				if err != nil {
					return err
				}
				key = key.WithKeyID(tp)
			}
			if !store {
				return a.printer.PrintJWK(key)
			}
			return a.saveKey(key)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password of an encrypted PKCS#8 key")
	cmd.Flags().StringVar(&kid, "kid", "", "key id (default: SHA-256 thumbprint)")
	cmd.Flags().BoolVar(&store, "store", false, "save the key to the key store instead of printing it")
	return cmd
}

func newJWKExportCmd(a *app) *cobra.Command {
	var (
		kf       keyFlags
		password string
		public   bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a JWK as PEM",
		Long: `Export an asymmetric JWK as PEM. Private keys are written as PKCS#8,
encrypted when --password is set. --public exports the public half.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.loadKey(&kf)
			if err != nil {
				return err
			}
			if public {
				if key, err = key.Public(); err != nil {
					return err
				}
			}
			data, err := encoding.ExportPEM(key, passwordBytes(password))
			if err != nil {
				return fmt.Errorf("failed to export key: %w", err)
			}
			return a.printer.PrintPEM(data)
		},
	}
	addKeyFlags(cmd, &kf, "key to export")
	cmd.Flags().StringVar(&password, "password", "", "encrypt the exported private key")
	cmd.Flags().BoolVar(&public, "public", false, "export the public key only")
	return cmd
}

func newJWKPublicCmd(a *app) *cobra.Command {
	var kf keyFlags
	cmd := &cobra.Command{
		Use:   "public",
		Short: "Print the public JWK of a key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.loadKey(&kf)
			if err != nil {
				return err
			}
			pub, err := key.Public()
			if err != nil {
				return err
			}
			return a.printer.PrintJWK(pub)
		},
	}
	addKeyFlags(cmd, &kf, "key")
	return cmd
}

func newJWKThumbprintCmd(a *app) *cobra.Command {
	var kf keyFlags
	cmd := &cobra.Command{
		Use:   "thumbprint",
		Short: "Compute the RFC 7638 SHA-256 thumbprint of a key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.loadKey(&kf)
			if err != nil {
				return err
			}
			tp, err := key.ThumbprintSHA256()
			if err != nil {
				return err
			}
			return a.printer.PrintThumbprint(tp)
		},
	}
	addKeyFlags(cmd, &kf, "key")
	return cmd
}

func newJWKListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the ids of stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := a.keyStore()
			if err != nil {
				return err
			}
			defer func() { _ = ks.Close() }()
			ids, err := ks.List()
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}
			return a.printer.PrintIDList("keys", ids)
		},
	}
}

func newJWKDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kid>",
		Short: "Delete a stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := a.keyStore()
			if err != nil {
				return err
			}
			defer func() { _ = ks.Close() }()
			if err := ks.Delete(args[0]); err != nil {
				return fmt.Errorf("failed to delete key: %w", err)
			}
			return a.printer.PrintSuccess(fmt.Sprintf("Key %s deleted", args[0]))
		},
	}
}

func newJWKEncryptSetCmd(a *app) *cobra.Command {
	var (
		password string
		in       string
		kids     []string
	)
	cmd := &cobra.Command{
		Use:   "encrypt-set",
		Short: "Protect a JWK Set with a password",
		Long: `Encrypt a JWK Set with PBES2-HS256+A128KW and A128GCM. The set is
read from --in, or built from the key store when --in is not set (all keys,
or those named with --kids).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("--password is required")
			}
			set, err := a.inputKeySet(cmd, in, kids)
			if err != nil {
				return err
			}
			token, err := jwe.EncryptJWKSet(set, []byte(password), a.jweOptions()...)
			if err != nil {
				return fmt.Errorf("failed to encrypt key set: %w", err)
			}
			return a.printer.PrintToken("jwe", token)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "protection password")
	cmd.Flags().StringVar(&in, "in", "", "JWK Set file (- for standard input)")
	cmd.Flags().StringSliceVar(&kids, "kids", nil, "stored key ids to include")
	return cmd
}

// inputKeySet reads a JWK Set from path, or collects it from the key store.
func (a *app) inputKeySet(cmd *cobra.Command, path string, kids []string) (*jwk.Set, error) {
	if path != "" {
		data, err := readInput(cmd, path)
		if err != nil {
			return nil, err
		}
		return jwk.ParseSet(data)
	}
	ks, err := a.keyStore()
	if err != nil {
		return nil, err
	}
	defer func() { _ = ks.Close() }()
	if len(kids) == 0 {
		return ks.Set()
	}
	set := jwk.NewSet()
	for _, kid := range kids {
		key, err := ks.Get(strings.TrimSpace(kid))
		if err != nil {
			return nil, fmt.Errorf("failed to load key %s: %w", kid, err)
		}
		set.Add(key)
	}
	return set, nil
}

func newJWKDecryptSetCmd(a *app) *cobra.Command {
	var (
		password string
		in       string
		store    bool
	)
	cmd := &cobra.Command{
		Use:   "decrypt-set",
		Short: "Recover a password protected JWK Set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("--password is required")
			}
			data, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			set, err := jwe.DecryptJWKSet(strings.TrimSpace(string(data)), []byte(password), a.jweOptions()...)
			if err != nil {
				return err
			}
			if !store {
				return a.printer.PrintKeySet(set)
			}
			for _, key := range set.Keys {
				if err := a.saveKey(key); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "protection password")
	cmd.Flags().StringVar(&in, "in", "", "encrypted set file (default: standard input)")
	cmd.Flags().BoolVar(&store, "store", false, "save the keys to the key store")
	return cmd
}

// jweOptions returns the JWE options implied by configuration.
func (a *app) jweOptions() []jwe.Option {
	opts := []jwe.Option{
		jwe.WithLogger(a.log),
		jwe.WithPBES2Iterations(a.cfg.JOSE.PBES2Iterations),
		jwe.WithMaxPBES2Iterations(a.cfg.JOSE.PBES2MaxIterations),
	}
	if a.cfg.JOSE.Compression {
		opts = append(opts, jwe.WithCompression())
	}
	return opts
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
