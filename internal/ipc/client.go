package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Submit hands URLs to the parsing worker.
func (c *Client) Submit(urls []string) (*SubmitResponse, error) {
	return call[SubmitResponse](c, "Submit", SubmitRequest{URLs: urls})
}

// QueueList lists queue items, optionally filtered by status name.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	return call[QueueListResponse](c, "QueueList", QueueListRequest{Statuses: statuses})
}

// QueueDescribe fetches a single queue item.
func (c *Client) QueueDescribe(id string) (*QueueDescribeResponse, error) {
	return call[QueueDescribeResponse](c, "QueueDescribe", QueueDescribeRequest{ID: id})
}

// QueueCancel cancels Waiting items and interrupts active ones.
func (c *Client) QueueCancel(ids []string) (*QueueCancelResponse, error) {
	return call[QueueCancelResponse](c, "QueueCancel", QueueIDsRequest{IDs: ids})
}

// QueueRetry returns failed or cancelled items to Waiting.
func (c *Client) QueueRetry(ids []string) (*QueueRetryResponse, error) {
	return call[QueueRetryResponse](c, "QueueRetry", QueueIDsRequest{IDs: ids})
}

// QueueRemove drops items from the queue without touching files.
func (c *Client) QueueRemove(ids []string) (*QueueRemoveResponse, error) {
	return call[QueueRemoveResponse](c, "QueueRemove", QueueIDsRequest{IDs: ids})
}

// QueueDelete removes downloaded files of finished items.
func (c *Client) QueueDelete(ids []string) (*QueueRemoveResponse, error) {
	return call[QueueRemoveResponse](c, "QueueDelete", QueueIDsRequest{IDs: ids})
}

func (c *Client) QueueCancelAll() (*QueueBulkResponse, error) {
	return call[QueueBulkResponse](c, "QueueCancelAll", QueueBulkRequest{})
}

func (c *Client) QueueRetryAll() (*QueueBulkResponse, error) {
	return call[QueueBulkResponse](c, "QueueRetryAll", QueueBulkRequest{})
}

func (c *Client) QueueClearCompleted() (*QueueBulkResponse, error) {
	return call[QueueBulkResponse](c, "QueueClearCompleted", QueueBulkRequest{})
}

// RestartWorkers restarts the worker pool and re-submits unfinished items.
func (c *Client) RestartWorkers() (*QueueBulkResponse, error) {
	return call[QueueBulkResponse](c, "RestartWorkers", QueueBulkRequest{})
}

// History lists archived downloads.
func (c *Client) History(req HistoryRequest) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", req)
}

// LogTail fetches daemon log lines.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}

// CleanTemp removes leftover partial downloads.
func (c *Client) CleanTemp(force bool) (*CleanTempResponse, error) {
	return call[CleanTempResponse](c, "CleanTemp", CleanTempRequest{Force: force})
}

// TestNotification sends a test notification.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
