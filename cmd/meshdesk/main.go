package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshdesk/client/internal/appconfig"
	"github.com/meshdesk/client/internal/filexfer"
	"github.com/meshdesk/client/internal/handshake"
	"github.com/meshdesk/client/internal/identity"
	"github.com/meshdesk/client/internal/ipc"
	"github.com/meshdesk/client/internal/logging"
	"github.com/meshdesk/client/internal/logincfg"
	"github.com/meshdesk/client/internal/media"
	"github.com/meshdesk/client/internal/orchestrator"
	"github.com/meshdesk/client/internal/peerconfig"
	"github.com/meshdesk/client/internal/portforward"
	"github.com/meshdesk/client/internal/rendezvous"
	"github.com/meshdesk/client/internal/session"
	"github.com/meshdesk/client/internal/wire"
)

var (
	version = "0.1.0"
	cfgFile string
	relay   bool
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "meshdesk",
	Short: "MeshDesk remote desktop client",
	Long:  `MeshDesk - a peer-to-peer remote desktop client.`,
}

var connectCmd = &cobra.Command{
	Use:   "connect <peer_id>",
	Short: "Open a default remote-desktop session with a peer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runDefaultSession(args[0]))
	},
}

var portForwardCmd = &cobra.Command{
	Use:   "port-forward <peer_id> <local_port> <remote_host> <remote_port>",
	Short: "Forward a local TCP port through a peer connection",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		localPort, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid local_port: %v\n", err)
			os.Exit(1)
		}
		remotePort, err := strconv.Atoi(args[3])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid remote_port: %v\n", err)
			os.Exit(1)
		}
		os.Exit(runPortForward(args[0], localPort, args[2], remotePort))
	},
}

var fileTransferCmd = &cobra.Command{
	Use:   "file-transfer <peer_id>",
	Short: "Open a file-transfer-only session with a peer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runFileTransfer(args[0]))
	},
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the single-instance bus (logs and accepts connect requests)",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runBridge())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("meshdesk v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is platform config dir/client.yaml)")
	rootCmd.PersistentFlags().BoolVar(&relay, "relay", false, "force the relay path, skipping direct hole-punching")

	rootCmd.AddCommand(connectCmd, portForwardCmd, fileTransferCmd, bridgeCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *appconfig.Config) {
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, 50, 3)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

// bootstrap loads the app config, sets up logging, and resolves this
// client's own persisted identity. Shared by every connect-style subcommand.
func bootstrap() (*appconfig.Config, *identity.Identity, error) {
	cfg, err := appconfig.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	initLogging(cfg)

	id, err := identity.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load identity: %w", err)
	}
	return cfg, id, nil
}

func readPassword() string {
	fmt.Fprint(os.Stderr, "Password (leave blank if none): ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return trimNewline(line)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// connect runs the full C2->C4 pipeline for peerID and returns the
// established transport plus whether it ran direct.
func connect(ctx context.Context, cfg *appconfig.Config, id *identity.Identity, peerID string, connType wire.ConnType, pc *peerconfig.Config) (*orchestrator.Result, error) {
	rdv := rendezvous.New(rendezvous.Config{
		Hosts:         cfg.RendezvousHosts,
		DialTimeout:   5 * time.Second,
		ClientCertPEM: cfg.RendezvousClientCertPEM,
		ClientKeyPEM:  cfg.RendezvousClientKeyPEM,
	})

	result, err := orchestrator.Connect(ctx, peerID, nil, cfg.LicenceKey, connType, orchestrator.Config{
		Rendezvous: rdv,
		Policy: orchestrator.Policy{
			ConnectTimeout: cfg.ConnectTimeout(),
			PunchTime:      cfg.PunchTime(),
			MyNatType:      wire.NatUnknown,
		},
		Handshake: handshake.Config{
			RendezvousPubKey: nil,
			PeerID:           peerID,
			ReadTimeout:      cfg.ConnectTimeout(),
			ConnectTimeout:   cfg.ConnectTimeout(),
		},
		ForceRelay: relay,
		StunServer: cfg.StunServer,
	}, pc)
	if err != nil {
		return nil, err
	}
	log.Info("connected", "peer", peerID, "direct", result.IsDirect)
	_ = id
	return result, nil
}

// logEvents drains a session's UI event channel to structured log lines;
// it stands in for a real UI's render/notify loop.
func logEvents(sess *session.Session) {
	for ev := range sess.Events() {
		switch {
		case ev.ConnectionReady != nil:
			log.Info("connection ready", "secure", ev.ConnectionReady.Secure, "direct", ev.ConnectionReady.Direct)
		case ev.Require2FA:
			log.Warn("peer requires 2FA; resubmit with a --code flag is not yet wired into this CLI")
		case ev.RePromptPassword:
			log.Warn("peer rejected password")
		case ev.ErrorBox != nil:
			log.Error("peer message box", "title", ev.ErrorBox.Title, "text", ev.ErrorBox.Text)
		case ev.FileProgress != nil:
			p := ev.FileProgress
			log.Info("file progress", "job_id", p.JobID, "transferred", p.Transferred, "total", p.TotalSize, "status", p.Status)
		case ev.Status != nil:
			log.Info("stream status", "display", ev.Status.Display, "decode_fps", ev.Status.DecodeFPS, "auto_fps", ev.Status.AutoFPS)
		case ev.VideoFrame != nil:
			// A real UI blits ev.VideoFrame.RGBA here; this driver only
			// counts frames via the session's own metrics.
		case ev.Closed != nil:
			log.Info("session closed", "reason", ev.Closed.Reason)
		}
	}
}

func runDefaultSession(peerID string) int {
	cfg, id, err := bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	pc, err := peerconfig.Load(peerID)
	if err != nil {
		pc = peerconfig.Default(peerID)
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := connect(ctx, cfg, id, peerID, wire.ConnDefault, pc)
	if err != nil {
		log.Error("connect failed", "peer", peerID, "error", err)
		return 2
	}
	defer result.Conn.Unwrap().Close()

	login, err := logincfg.New(pc, wire.ConnDefault)
	if err != nil {
		log.Error("login config", "error", err)
		return 1
	}

	localInfo := peerconfig.GatherLocalInfo()
	log.Debug("local machine info", "platform", localInfo.Platform, "available_ram_bytes", localInfo.AvailableRAMBytes)
	sess := session.New(session.Config{
		Conn:               result.Conn,
		Login:              login,
		Files:              filexfer.NewManager(),
		MyID:               id.ID,
		MyName:             localInfo.DisplayName(),
		Version:            version,
		PlaintextPassword:  readPassword(),
		IsDirect:           result.IsDirect,
		NewVideoDecoder:    media.NewH264DecoderFactory(),
		AudioDecoder:       headlessAudioDecoder{},
		AudioSink:          headlessAudioSink{},
	})

	go logEvents(sess)

	if err := sess.Run(ctx); err != nil {
		log.Error("session ended", "error", err)
		return 3
	}
	return 0
}

func runFileTransfer(peerID string) int {
	cfg, id, err := bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	pc, err := peerconfig.Load(peerID)
	if err != nil {
		pc = peerconfig.Default(peerID)
	}
	pc.EnableFileTransfer = true

	ctx, cancel := signalContext()
	defer cancel()

	result, err := connect(ctx, cfg, id, peerID, wire.ConnFileTransfer, pc)
	if err != nil {
		log.Error("connect failed", "peer", peerID, "error", err)
		return 2
	}
	defer result.Conn.Unwrap().Close()

	login, err := logincfg.New(pc, wire.ConnFileTransfer)
	if err != nil {
		log.Error("login config", "error", err)
		return 1
	}

	localInfo := peerconfig.GatherLocalInfo()
	log.Debug("local machine info", "platform", localInfo.Platform, "available_ram_bytes", localInfo.AvailableRAMBytes)
	files := filexfer.NewManager()
	sess := session.New(session.Config{
		Conn:              result.Conn,
		Login:             login,
		Files:             files,
		MyID:              id.ID,
		MyName:            localInfo.DisplayName(),
		Version:           version,
		PlaintextPassword: readPassword(),
		IsDirect:          result.IsDirect,
		NewVideoDecoder:   media.NewH264DecoderFactory(),
		AudioDecoder:      headlessAudioDecoder{},
		AudioSink:         headlessAudioSink{},
	})

	go logEvents(sess)
	go readTransferCommands(sess)

	if err := sess.Run(ctx); err != nil {
		log.Error("session ended", "error", err)
		return 3
	}
	return 0
}

// readTransferCommands lets an operator queue transfers from stdin:
// "send <local_path> <remote_path>" per line. A real UI issues these
// through session.UICommands() directly instead.
func readTransferCommands(sess *session.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var verb, local, remote string
		n, _ := fmt.Sscanf(scanner.Text(), "%s %s %s", &verb, &local, &remote)
		if n != 3 || verb != "send" {
			continue
		}
		sess.UICommands() <- session.UICommand{SendFiles: &session.SendFilesCommand{LocalPath: local, RemotePath: remote}}
	}
}

func runPortForward(peerID string, localPort int, remoteHost string, remotePort int) int {
	cfg, id, err := bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	pc, err := peerconfig.Load(peerID)
	if err != nil {
		pc = peerconfig.Default(peerID)
	}

	ctx, cancel := signalContext()
	defer cancel()

	dial := func(dialCtx context.Context) (*portforward.Tunnel, []byte, error) {
		result, err := connect(dialCtx, cfg, id, peerID, wire.ConnPortForward, pc)
		if err != nil {
			return nil, nil, err
		}
		result.Conn.SetRaw()
		return portforward.New(result.Conn), nil, nil
	}

	rule := portforward.Rule{LocalPort: localPort, RemoteHost: remoteHost, RemotePort: remotePort}
	log.Info("port-forward listening", "peer", peerID, "local_port", localPort, "remote", fmt.Sprintf("%s:%d", remoteHost, remotePort))

	if remotePort == 3389 {
		go func() {
			time.Sleep(500 * time.Millisecond)
			if err := portforward.LaunchRDPClient(ctx, localPort); err != nil {
				log.Warn("launch rdp client failed", "error", err)
			}
		}()
	}

	if err := portforward.AcceptLoop(ctx, rule, dial, nil); err != nil {
		log.Error("port-forward loop ended", "error", err)
		return 3
	}
	return 0
}

// runBridge hosts the single-instance bus. Each connect request is logged
// and answered with Accepted; no session is opened for it, and no other
// subcommand of this binary dials the bus ("connect" always starts its own
// connection).
func runBridge() int {
	cfg, err := appconfig.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	initLogging(cfg)

	sockPath := ipc.DefaultSocketPath()
	ln, err := ipc.Listen(sockPath)
	if err != nil {
		log.Error("bus listen failed", "path", sockPath, "error", err)
		return 1
	}
	defer ln.Close()
	log.Info("bus listening", "path", sockPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Info("bus stopped", "error", err)
			return 0
		}
		go handleBusConn(conn)
	}
}

func handleBusConn(c net.Conn) {
	defer c.Close()
	ic := ipc.NewConn(c)
	env, err := ic.Recv()
	if err != nil {
		log.Warn("bus recv failed", "error", err)
		return
	}
	if env.Type != ipc.TypeConnectRequest {
		ic.SendError(env.ID, ipc.TypeConnectResponse, "expected a connect request")
		return
	}
	var req ipc.ConnectRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		ic.SendError(env.ID, ipc.TypeConnectResponse, "malformed connect request")
		return
	}
	log.Info("bus connect request", "peer", req.PeerID, "requester_pid", req.RequesterPID)
	ic.SendTyped(env.ID, ipc.TypeConnectResponse, &ipc.ConnectResponse{Accepted: true})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
