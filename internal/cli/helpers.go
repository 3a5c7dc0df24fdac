package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Davincible/sharecrypt/internal/validation"
	"github.com/Davincible/sharecrypt/pkg/config"
	"github.com/Davincible/sharecrypt/pkg/sharestore"
)

// EnvPassphrase supplies the store or bundle passphrase non-interactively.
const EnvPassphrase = "SHARECRYPT_PASSPHRASE"

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func loadConfig(cmd *cobra.Command) (*config.ConfigManager, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.NewConfigManager()
	}
	return config.NewConfigManagerAt(path)
}

func storePath(cmd *cobra.Command, cm *config.ConfigManager) (string, error) {
	if dir, _ := cmd.Flags().GetString("store-dir"); dir != "" {
		return dir, nil
	}
	return cm.StoragePath()
}

// getShareStore opens the configured store. When the named set is sealed the
// store is reopened with a sealer built from a prompted passphrase.
func getShareStore(cmd *cobra.Command, cm *config.ConfigManager, in *prompter, id string) (*sharestore.ShareStore, error) {
	path, err := storePath(cmd, cm)
	if err != nil {
		return nil, err
	}

	store, err := sharestore.NewShareStore(path)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return store, nil
	}

	shareSet, err := store.GetShareSet(id)
	if err != nil {
		return nil, err
	}
	if !shareSet.IsEncrypted {
		return store, nil
	}

	sealer, err := newSealer(in, "Enter store passphrase: ")
	if err != nil {
		return nil, err
	}
	return sharestore.NewShareStore(path, sharestore.WithSealer(sealer))
}

func newSealer(in *prompter, prompt string) (*sharestore.Sealer, error) {
	passphrase, err := in.password(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	if err := validation.ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}
	return sharestore.NewSealer(passphrase, sharestore.DefaultKeyDerivationParams())
}

// prompter reads secrets and passwords from the terminal, falling back to
// line-by-line reads of the command's input when it is not a terminal.
type prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()}
}

func (p *prompter) terminalFd() (int, bool) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	return int(f.Fd()), true
}

func (p *prompter) line() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}
	s, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// hidden reads one line without echo when attached to a terminal.
func (p *prompter) hidden(prompt string) ([]byte, error) {
	fmt.Fprint(p.out, prompt)

	if fd, ok := p.terminalFd(); ok {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		return b, err
	}

	s, err := p.line()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (p *prompter) password(prompt string) (string, error) {
	if env := os.Getenv(EnvPassphrase); env != "" {
		return env, nil
	}
	b, err := p.hidden(prompt)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	return string(b), nil
}

// all reads the remaining input.
func (p *prompter) all() ([]byte, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}
	return io.ReadAll(p.reader)
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
