// Package gitsmart implements the read-only half of the git smart HTTP
// transport by shelling out to the system git-upload-pack binary, the way
// every git host serving smart clone-by-HTTP does it.
package gitsmart

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"

	"github.com/rs/zerolog/log"
)

const infoRefsPrefix = "001e# service=git-upload-pack\n0000"

// AdvertiseRefs runs `git-upload-pack --advertise-refs <repoPath>` and
// returns its output prefixed with the pkt-line service announcement
// Cargo's git client expects from GET info/refs?service=git-upload-pack.
func AdvertiseRefs(repoPath string) ([]byte, error) {
	cmd := exec.Command("git-upload-pack", "--advertise-refs", repoPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logStderr(&stderr)
		return nil, fmt.Errorf("git-upload-pack --advertise-refs failed: %w", err)
	}

	body := make([]byte, 0, len(infoRefsPrefix)+stdout.Len())
	body = append(body, infoRefsPrefix...)
	body = append(body, stdout.Bytes()...)
	return body, nil
}

// UploadPack runs `git-upload-pack --stateless-rpc <repoPath>`, writing
// body to its stdin and streaming its stdout to out. stderr is drained and
// logged, never surfaced to the client. The child's stdin is closed as
// soon as body is exhausted so the process doesn't block waiting for more
// input, matching how Cargo's single-shot POST frames the request.
func UploadPack(repoPath string, body io.Reader, out io.Writer) error {
	cmd := exec.Command("git-upload-pack", "--stateless-rpc", repoPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe for git-upload-pack: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe for git-upload-pack: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe for git-upload-pack: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to run git-upload-pack --stateless-rpc: %w", err)
	}

	go func() {
		defer stdin.Close()
		if _, err := io.Copy(stdin, body); err != nil {
			log.Warn().Err(err).Msg("failed to write request body to git-upload-pack stdin")
		}
	}()

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Debug().Str("component", "git-upload-pack").Msg(scanner.Text())
		}
	}()

	if _, err := io.Copy(out, stdout); err != nil {
		return fmt.Errorf("failed to stream git-upload-pack stdout: %w", err)
	}

	<-stderrDone
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("git-upload-pack --stateless-rpc exited with error: %w", err)
	}
	return nil
}

func logStderr(stderr *bytes.Buffer) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		log.Debug().Str("component", "git-upload-pack").Msg(scanner.Text())
	}
}
