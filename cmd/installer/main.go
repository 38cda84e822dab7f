// Command installer builds the decipher CLI with version metadata stamped
// in and copies it onto the PATH.
package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
)

const versionPkg = "decipher/pkg/version"

var (
	installDir string
	release    string
)

func main() {
	root := &cobra.Command{
		Use:           "installer",
		Short:         "Build and install the decipher CLI",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          install,
	}
	root.Flags().StringVar(&installDir, "path", "", "custom install directory")
	root.Flags().StringVar(&release, "version", "", "version to stamp into the binary")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func install(cmd *cobra.Command, args []string) error {
	if release != "" {
		v, err := semver.NewVersion(release)
		if err != nil {
			return fmt.Errorf("--version %q: %w", release, err)
		}
		release = v.String()
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("unable to determine working directory: %w", err)
	}

	binaryName := "decipher"
	if runtime.GOOS == "windows" {
		binaryName += ".exe"
	}
	buildOutput := filepath.Join(repoRoot, binaryName)
	defer os.Remove(buildOutput)

	fmt.Println("🚧 Building decipher CLI...")
	build := exec.Command("go", "build", "-ldflags", ldflags(repoRoot), "-o", buildOutput, "./cmd/decipher")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	build.Dir = repoRoot
	if err := build.Run(); err != nil {
		return fmt.Errorf("go build failed: %w", err)
	}

	targetDir := installDir
	if targetDir == "" {
		targetDir = defaultInstallDir()
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("unable to create install directory: %w", err)
	}

	destPath := filepath.Join(targetDir, binaryName)
	fmt.Printf("📦 Installing to %s\n", destPath)
	if err := copyFile(buildOutput, destPath); err != nil {
		return fmt.Errorf("failed to copy binary (try running with elevated permissions): %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(destPath, 0o755); err != nil {
			return fmt.Errorf("failed to set executable bit: %w", err)
		}
	}

	fmt.Println("✅ decipher installed successfully!")
	fmt.Println("Run 'decipher version' to verify the CLI is available in your PATH.")
	return nil
}

// ldflags stamps the version, the current commit and the build time.
func ldflags(repoRoot string) string {
	commit := "development"
	git := exec.Command("git", "rev-parse", "--short", "HEAD")
	git.Dir = repoRoot
	if out, err := git.Output(); err == nil {
		commit = strings.TrimSpace(string(out))
	}

	flags := []string{
		fmt.Sprintf("-X %s.GitCommit=%s", versionPkg, commit),
		fmt.Sprintf("-X %s.BuildDate=%s", versionPkg, time.Now().UTC().Format(time.RFC3339)),
	}
	if release != "" {
		flags = append(flags, fmt.Sprintf("-X %s.Version=%s", versionPkg, release))
	}
	return strings.Join(flags, " ")
}

func defaultInstallDir() string {
	switch runtime.GOOS {
	case "windows":
		if base := os.Getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, "Programs", "DeCipher")
		}
		return filepath.Join(os.TempDir(), "DeCipher")
	default:
		return "/usr/local/bin"
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Sync()
}
