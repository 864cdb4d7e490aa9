package executor

import (
	"context"
	"errors"
	"fmt"
	"gtburst/internal/config"
	"gtburst/pkg/launch"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// x11Socket is bind-mounted when DISPLAY is set so the GUI can reach the
// host X server.
const x11Socket = "/tmp/.X11-unix"

// DockerExecutor runs the interpreter inside an ephemeral container built
// from an image that carries the Science Tools. The installation directory
// is mounted at the same path, so the script path is valid on both sides.
type DockerExecutor struct {
	client      *client.Client
	logger      *log.Logger
	streams     Streams
	image       string
	pull        config.PullPolicy
	mounts      []string
	confDir     string
	passthrough []string
}

// NewDockerExecutor creates a Docker-based executor. The client is
// configured from the standard environment (DOCKER_HOST and friends).
func NewDockerExecutor(cfg *config.Config, logger *log.Logger, streams Streams) (*DockerExecutor, error) {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "docker-exec"})
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return &DockerExecutor{
		client:      cli,
		logger:      logger,
		streams:     streams,
		image:       cfg.Docker.Image,
		pull:        cfg.Docker.Pull,
		mounts:      cfg.Docker.Mounts,
		confDir:     cfg.ConfDir,
		passthrough: cfg.EnvPassthrough,
	}, nil
}

func (de *DockerExecutor) Name() string {
	return "docker"
}

// Ping checks that the daemon is reachable.
func (de *DockerExecutor) Ping(ctx context.Context) error {
	if _, err := de.client.Ping(ctx); err != nil {
		return fmt.Errorf("ping docker daemon: %w", err)
	}
	return nil
}

// Close releases the client's transport.
func (de *DockerExecutor) Close() error {
	return de.client.Close()
}

// Execute runs the invocation in a new container and removes it afterwards.
func (de *DockerExecutor) Execute(ctx context.Context, inv *launch.Invocation) (int, error) {
	if inv.InstDir == "" {
		return 1, errors.New("docker mode requires a resolved installation directory")
	}

	if err := de.ensureImage(ctx); err != nil {
		return 1, err
	}

	containerConfig, hostConfig := de.containerSpec(inv)
	de.logger.Debug("docker exec", "image", de.image, "cmd", containerConfig.Cmd, "binds", hostConfig.Binds)

	resp, err := de.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return ExitCannotExec, fmt.Errorf("create container: %w", err)
	}

	defer func() {
		if err := de.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); err != nil {
			de.logger.Warn("remove container", "id", resp.ID, "err", err)
		}
	}()

	// Attach before starting so no early output is lost
	attachResp, err := de.client.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return ExitCannotExec, fmt.Errorf("attach container: %w", err)
	}
	defer attachResp.Close()

	statusCh, errCh := de.client.ContainerWait(ctx, resp.ID, container.WaitConditionNextExit)

	if err := de.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return ExitCannotExec, fmt.Errorf("start container: %w", err)
	}

	streamDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(de.streams.Stdout, de.streams.Stderr, attachResp.Reader)
		streamDone <- err
	}()

	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			de.kill(resp.ID)
			return ExitInterrupted, ctx.Err()
		}
		return 1, fmt.Errorf("wait container: %w", err)
	case status := <-statusCh:
		if err := <-streamDone; err != nil {
			de.logger.Warn("stream error", "err", err)
		}
		if status.Error != nil && status.Error.Message != "" {
			return 1, fmt.Errorf("container exited abnormally: %s", status.Error.Message)
		}
		return int(status.StatusCode), nil
	case <-ctx.Done():
		de.kill(resp.ID)
		return ExitInterrupted, ctx.Err()
	}
}

// ensureImage makes the image available locally according to the pull policy.
func (de *DockerExecutor) ensureImage(ctx context.Context) error {
	if de.pull != config.PullAlways {
		_, err := de.client.ImageInspect(ctx, de.image)
		if err == nil {
			return nil
		}
		if de.pull == config.PullNever {
			return fmt.Errorf("image %s not present and pull policy is never: %w", de.image, err)
		}
	}

	de.logger.Info("pulling image", "image", de.image)
	reader, err := de.client.ImagePull(ctx, de.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", de.image, err)
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull image %s: %w", de.image, err)
	}
	return nil
}

// containerSpec builds the container and host configuration for inv.
func (de *DockerExecutor) containerSpec(inv *launch.Invocation) (*container.Config, *container.HostConfig) {
	env := ScrubEnvironment(inv.Env, de.passthrough)
	env = SetEnv(env, launch.InstDirEnv, inv.InstDir)
	if de.confDir != "" {
		env = SetEnv(env, config.ConfDirEnv, de.confDir)
	}

	binds := newBindSet()
	binds.add(inv.InstDir, inv.InstDir, "ro")
	if de.confDir != "" {
		binds.add(de.confDir, de.confDir, "")
	}
	bindCwd, workDir := cwdMount(inv.Cwd, inv.InstDir)
	if bindCwd {
		binds.add(workDir, workDir, "")
	}
	if display, ok := LookupEnv(env, "DISPLAY"); ok && display != "" {
		if _, err := os.Stat(x11Socket); err == nil {
			binds.add(x11Socket, x11Socket, "")
		}
	}
	for _, m := range de.mounts {
		binds.addSpec(m)
	}

	containerConfig := &container.Config{
		Image:      de.image,
		Cmd:        inv.Argv(),
		WorkingDir: workDir,
		Env:        env,
	}
	if inv.Identity.UID >= 0 && inv.Identity.GID >= 0 {
		containerConfig.User = fmt.Sprintf("%d:%d", inv.Identity.UID, inv.Identity.GID)
	}

	hostConfig := &container.HostConfig{
		Binds: binds.list,
	}

	return containerConfig, hostConfig
}

func (de *DockerExecutor) kill(id string) {
	if err := de.client.ContainerKill(context.Background(), id, "SIGKILL"); err != nil {
		de.logger.Warn("kill container", "id", id, "err", err)
	}
}

// systemDirs are never bind-mounted from the working directory: they would
// shadow the image's own filesystem.
var systemDirs = map[string]bool{
	"/":      true,
	"/bin":   true,
	"/boot":  true,
	"/dev":   true,
	"/etc":   true,
	"/lib":   true,
	"/lib64": true,
	"/opt":   true,
	"/proc":  true,
	"/run":   true,
	"/sbin":  true,
	"/sys":   true,
	"/usr":   true,
	"/var":   true,
}

// cwdMount decides how the working directory reaches the container. An
// unrelated directory is bind-mounted read-write at the same path. One
// inside the installation root is already visible through its read-only
// mount. A system directory, or one containing the installation root, is
// not mounted and the container starts in the installation root instead.
func cwdMount(cwd, instDir string) (bool, string) {
	if cwd == "" || !filepath.IsAbs(cwd) {
		return false, instDir
	}
	cwd = filepath.Clean(cwd)
	instDir = filepath.Clean(instDir)

	if within(instDir, cwd) {
		return false, cwd
	}
	if systemDirs[cwd] || within(cwd, instDir) {
		return false, instDir
	}
	return true, cwd
}

// within reports whether p is dir or lies below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// bindSet collects bind specs, keeping the first one per container path.
type bindSet struct {
	list []string
	seen map[string]bool
}

func newBindSet() *bindSet {
	return &bindSet{seen: make(map[string]bool)}
}

func (b *bindSet) add(host, target, mode string) {
	target = filepath.Clean(target)
	if b.seen[target] {
		return
	}
	b.seen[target] = true

	spec := host + ":" + target
	if mode != "" {
		spec += ":" + mode
	}
	b.list = append(b.list, spec)
}

// addSpec adds a "host:target[:mode]" spec, expanding a leading ~ on the
// host side.
func (b *bindSet) addSpec(spec string) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 {
		return
	}
	host := parts[0]
	if host == "~" || strings.HasPrefix(host, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			host = filepath.Join(home, strings.TrimPrefix(host, "~"))
		}
	}
	mode := ""
	if len(parts) == 3 {
		mode = parts[2]
	}
	b.add(host, parts[1], mode)
}
