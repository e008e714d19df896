package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"log/slog"

	"nightscribe/internal/daemon"
	"nightscribe/internal/logging"
	"nightscribe/internal/queue"
)

// ServiceName is the JSON-RPC receiver name clients call methods on.
const ServiceName = "Nightscribe"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown,
// when non-nil, is invoked by the Shutdown RPC to terminate the process's
// run context.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, shutdown func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	logger = logging.NewComponentLogger(logger, "ipc")
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: ctx, shutdown: shutdown}
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts RPC connections until the context is canceled or Close runs.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	resp.Running = status.Running
	resp.StopAfterCurrent = status.Queue.StopAfterCurrent
	resp.QueueCounts = map[string]int{
		string(queue.StatusPending): status.Queue.Pending,
		string(queue.StatusRunning): status.Queue.Running,
		string(queue.StatusDone):    status.Queue.Done,
		string(queue.StatusFailed):  status.Queue.Failed,
		string(queue.StatusSkipped): status.Queue.Skipped,
	}
	resp.StateFilePath = status.StateFilePath
	resp.LockPath = status.LockFilePath
	resp.WatchFolder = status.WatchFolder
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Add(req AddRequest, resp *AddResponse) error {
	job, err := s.daemon.EnqueuePath(s.ctx, req.Path)
	if err != nil {
		return err
	}
	resp.Job = FromJob(job)
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		parsed, ok := queue.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, parsed)
	}
	jobs, err := s.daemon.ListQueue(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Jobs = make([]Job, 0, len(jobs))
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, FromJob(job))
	}
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("job id is required")
	}
	job, err := s.daemon.GetJob(s.ctx, id)
	if err != nil {
		return err
	}
	resp.Job = FromJob(job)
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	removed, err := s.daemon.ClearPending(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) StopAfterCurrent(_ StopAfterCurrentRequest, resp *StopAfterCurrentResponse) error {
	if err := s.daemon.RequestStopAfterCurrent(s.ctx); err != nil {
		return err
	}
	resp.Stopping = true
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *ResumeResponse) error {
	if err := s.daemon.Resume(s.ctx); err != nil {
		return err
	}
	resp.Resumed = true
	return nil
}

func (s *service) Scan(_ ScanRequest, resp *ScanResponse) error {
	admitted, err := s.daemon.ScanWatchFolder(s.ctx)
	if err != nil {
		return err
	}
	resp.Admitted = admitted
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	if s.shutdown == nil {
		return errors.New("shutdown not supported")
	}
	s.logger.Info("shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	// Run asynchronously so the response reaches the client before the
	// socket goes away.
	go s.shutdown()
	resp.Stopping = true
	return nil
}
