package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is a JSON-RPC client for the daemon control socket.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon socket %s: %w", path, err)
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) call(method string, req, resp any) error {
	return c.rpc.Call(ServiceName+"."+method, req, resp)
}

// Status reports daemon and queue state.
func (c *Client) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.call("Status", StatusRequest{}, &resp)
	return resp, err
}

// Add enqueues an audio file by path.
func (c *Client) Add(path string) (AddResponse, error) {
	var resp AddResponse
	err := c.call("Add", AddRequest{Path: path}, &resp)
	return resp, err
}

// QueueList returns jobs, optionally filtered by status names.
func (c *Client) QueueList(statuses []string) (QueueListResponse, error) {
	var resp QueueListResponse
	err := c.call("QueueList", QueueListRequest{Statuses: statuses}, &resp)
	return resp, err
}

// QueueDescribe returns a single job by id.
func (c *Client) QueueDescribe(id string) (QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	err := c.call("QueueDescribe", QueueDescribeRequest{ID: id}, &resp)
	return resp, err
}

// QueueClear removes all pending jobs.
func (c *Client) QueueClear() (QueueClearResponse, error) {
	var resp QueueClearResponse
	err := c.call("QueueClear", QueueClearRequest{}, &resp)
	return resp, err
}

// StopAfterCurrent asks the runner to pause after the active job finishes.
func (c *Client) StopAfterCurrent() (StopAfterCurrentResponse, error) {
	var resp StopAfterCurrentResponse
	err := c.call("StopAfterCurrent", StopAfterCurrentRequest{}, &resp)
	return resp, err
}

// Resume clears a stop-after-current request.
func (c *Client) Resume() (ResumeResponse, error) {
	var resp ResumeResponse
	err := c.call("Resume", ResumeRequest{}, &resp)
	return resp, err
}

// Scan triggers an immediate watch-folder sweep.
func (c *Client) Scan() (ScanResponse, error) {
	var resp ScanResponse
	err := c.call("Scan", ScanRequest{}, &resp)
	return resp, err
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (ShutdownResponse, error) {
	var resp ShutdownResponse
	err := c.call("Shutdown", ShutdownRequest{}, &resp)
	return resp, err
}
