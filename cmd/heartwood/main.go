// Command heartwood is a thin CLI wrapper over the identity package: init,
// show, delegate, and rescind operate on a single repository's canonical
// identity document. It is intentionally minimal — argument parsing and
// terminal rendering are not the core's concern (spec.md Non-goals).
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sirupsen/logrus"

	hwcrypto "github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/identity"
	"github.com/nodeforge/heartwood/pkg/config"
	"github.com/nodeforge/heartwood/pkg/utils"
	"github.com/nodeforge/heartwood/storage"
)

func main() {
	root := &cobra.Command{Use: "heartwood", Short: "manage a radicle-style identity document"}
	root.AddCommand(idCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func idCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "id", Short: "identity document operations"}
	cmd.AddCommand(idInitCmd(), idShowCmd(), idDelegateCmd(), idRescindCmd())
	return cmd
}

func idInitCmd() *cobra.Command {
	var name, branch, desc string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "initialize a new repository identity with this node as sole delegate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return utils.Wrap(err, "load config")
			}
			signer, err := loadOrCreateSigner(cfg.Profile.Keystore)
			if err != nil {
				return utils.Wrap(err, "load signer")
			}
			repo, err := openOrInitRepo(cfg.Profile.Home)
			if err != nil {
				return utils.Wrap(err, "open repository")
			}
			local := signer.PublicKey()
			unverified, err := identity.Initial(identity.Project{Name: name, DefaultBranch: branch, Description: desc}, hwcrypto.DIDFromPublicKey(local), identity.PublicVisibility())
			if err != nil {
				return utils.Wrap(err, "build document")
			}
			doc, err := unverified.Verify()
			if err != nil {
				return utils.Wrap(err, "verify document")
			}
			blobOid, sig, err := identity.Sign(doc, signer)
			if err != nil {
				return utils.Wrap(err, "sign document")
			}
			_ = blobOid
			oid, err := identity.Init(doc, local, map[hwcrypto.PublicKey]hwcrypto.Signature{local: sig}, repo)
			if err != nil {
				return utils.Wrap(err, "commit identity")
			}
			if err := repo.SetReference(storage.CanonicalIdentityRef(), oid); err != nil {
				return utils.Wrap(err, "set canonical ref")
			}
			fmt.Printf("initialized identity %s at commit %s\n", hwcrypto.DIDFromPublicKey(local), oid)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&branch, "default-branch", "main", "default branch")
	cmd.Flags().StringVar(&desc, "description", "", "project description")
	return cmd
}

func idShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "print the canonical identity document as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return utils.Wrap(err, "load config")
			}
			repo, err := openOrInitRepo(cfg.Profile.Home)
			if err != nil {
				return utils.Wrap(err, "open repository")
			}
			at, err := identity.Canonical(repo)
			if err != nil {
				return utils.Wrap(err, "load canonical identity")
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(at.Doc)
		},
	}
}

func idDelegateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delegate <did>",
		Short: "add a delegate to the canonical identity document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editCanonical(args[0], func(doc *identity.Doc[identity.Verified], pk hwcrypto.PublicKey) error {
				doc.Delegate(pk)
				return nil
			}, "Add delegate")
		},
	}
}

func idRescindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescind <did>",
		Short: "remove a delegate from the canonical identity document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editCanonical(args[0], func(doc *identity.Doc[identity.Verified], pk hwcrypto.PublicKey) error {
				_, err := doc.Rescind(pk)
				return err
			}, "Rescind delegate")
		},
	}
}

// editCanonical loads the canonical document, applies mutate, re-verifies
// it, and commits the result signed by the local keystore signer. The CLI
// assumes a single local signature satisfies the document's current
// threshold; multi-delegate co-signing is outside this thin wrapper's scope.
func editCanonical(did string, mutate func(*identity.Doc[identity.Verified], hwcrypto.PublicKey) error, title string) error {
	target := hwcrypto.DID(did)
	pk, err := target.PublicKey()
	if err != nil {
		return utils.Wrap(err, "parse did")
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return utils.Wrap(err, "load config")
	}
	signer, err := loadOrCreateSigner(cfg.Profile.Keystore)
	if err != nil {
		return utils.Wrap(err, "load signer")
	}
	repo, err := openOrInitRepo(cfg.Profile.Home)
	if err != nil {
		return utils.Wrap(err, "open repository")
	}
	at, err := identity.Canonical(repo)
	if err != nil {
		return utils.Wrap(err, "load canonical identity")
	}
	doc := at.Doc
	if err := mutate(&doc, pk); err != nil {
		return utils.Wrap(err, "apply edit")
	}
	verified, err := doc.Unverify().Verify()
	if err != nil {
		return utils.Wrap(err, "verify updated document")
	}
	_, sig, err := identity.Sign(verified, signer)
	if err != nil {
		return utils.Wrap(err, "sign document")
	}
	local := signer.PublicKey()
	oid, err := identity.Update(verified, local, title, map[hwcrypto.PublicKey]hwcrypto.Signature{local: sig}, repo)
	if err != nil {
		return utils.Wrap(err, "commit update")
	}
	if err := repo.SetReference(storage.CanonicalIdentityRef(), oid); err != nil {
		return utils.Wrap(err, "set canonical ref")
	}
	fmt.Printf("updated identity at commit %s\n", oid)
	return nil
}

func openOrInitRepo(home string) (*storage.Repository, error) {
	if home == "" {
		home = "."
	}
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	if repo, err := storage.Open(home, log); err == nil {
		return repo, nil
	}
	return storage.Init(home, log)
}

// loadOrCreateSigner reads a raw 32-byte Ed25519 seed from path, generating
// and persisting a new one if the file doesn't exist. Keystore file formats
// beyond this are out of the core's scope (spec.md Non-goals).
func loadOrCreateSigner(path string) (hwcrypto.Signer, error) {
	if path == "" {
		path = "heartwood.key"
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != ed25519.SeedSize {
			return nil, fmt.Errorf("keystore %s: expected %d byte seed, got %d", path, ed25519.SeedSize, len(data))
		}
		var seed [32]byte
		copy(seed[:], data)
		return hwcrypto.SignerFromSeed(seed), nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, seed[:], 0o600); err != nil {
		return nil, err
	}
	return hwcrypto.SignerFromSeed(seed), nil
}
