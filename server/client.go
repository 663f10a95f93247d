package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/scottjcrouch/ScootNES/console"
	"github.com/scottjcrouch/ScootNES/controller"
)

// Client calls a remote Debugger service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the service at addr without transport security.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, fullMethod(method), in, out)
}

func (c *Client) empty(ctx context.Context, method string) error {
	return c.call(ctx, method, &emptypb.Empty{}, new(emptypb.Empty))
}

// GetCPUState fetches the processor registers.
func (c *Client) GetCPUState(ctx context.Context) (console.CPUState, error) {
	out := new(structpb.Struct)
	if err := c.call(ctx, "GetCPUState", &emptypb.Empty{}, out); err != nil {
		return console.CPUState{}, err
	}
	f := out.GetFields()
	num := func(k string) float64 { return f[k].GetNumberValue() }
	return console.CPUState{
		A:      byte(num("a")),
		X:      byte(num("x")),
		Y:      byte(num("y")),
		SP:     byte(num("sp")),
		P:      byte(num("p")),
		PC:     uint16(num("pc")),
		Cycles: uint64(num("cycles")),
		Halted: f["halted"].GetBoolValue(),
	}, nil
}

// ReadMemory reads one byte.
func (c *Client) ReadMemory(ctx context.Context, addr uint16) (byte, error) {
	out := new(wrapperspb.UInt32Value)
	if err := c.call(ctx, "ReadMemory", wrapperspb.UInt32(uint32(addr)), out); err != nil {
		return 0, err
	}
	return byte(out.GetValue()), nil
}

// ReadMemoryBlock reads size bytes from addr.
func (c *Client) ReadMemoryBlock(ctx context.Context, addr uint16, size int) ([]byte, error) {
	in, err := structpb.NewStruct(map[string]any{"address": int(addr), "size": size})
	if err != nil {
		return nil, err
	}
	out := new(wrapperspb.BytesValue)
	if err := c.call(ctx, "ReadMemoryBlock", in, out); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// GetFrame fetches the last frame as RGBA bytes.
func (c *Client) GetFrame(ctx context.Context) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.call(ctx, "GetFrame", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// Disassemble decodes count instructions from addr.
func (c *Client) Disassemble(ctx context.Context, addr uint16, count int) ([]string, error) {
	in, err := structpb.NewStruct(map[string]any{"address": int(addr), "count": count})
	if err != nil {
		return nil, err
	}
	out := new(structpb.ListValue)
	if err := c.call(ctx, "Disassemble", in, out); err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		lines = append(lines, v.GetStringValue())
	}
	return lines, nil
}

func (c *Client) Pause(ctx context.Context) error  { return c.empty(ctx, "Pause") }
func (c *Client) Resume(ctx context.Context) error { return c.empty(ctx, "Resume") }
func (c *Client) Step(ctx context.Context) error   { return c.empty(ctx, "Step") }
func (c *Client) Reset(ctx context.Context) error  { return c.empty(ctx, "Reset") }

// SaveState asks the emulator to write a snapshot to filename on its host.
func (c *Client) SaveState(ctx context.Context, filename string) error {
	return c.call(ctx, "SaveState", wrapperspb.String(filename), new(emptypb.Empty))
}

// LoadState asks the emulator to restore a snapshot from filename.
func (c *Client) LoadState(ctx context.Context, filename string) error {
	return c.call(ctx, "LoadState", wrapperspb.String(filename), new(emptypb.Empty))
}

// InputStream sends controller state to the emulator.
type InputStream struct {
	stream grpc.ClientStream
}

// StreamInput opens an input stream.
func (c *Client) StreamInput(ctx context.Context) (*InputStream, error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("StreamInput"))
	if err != nil {
		return nil, err
	}
	return &InputStream{stream: stream}, nil
}

// Send sets the buttons held on controller player (1 or 2).
func (s *InputStream) Send(player int, buttons [8]bool) error {
	msg, err := structpb.NewStruct(map[string]any{
		"player":  player,
		"buttons": controller.FormatButtons(buttons),
	})
	if err != nil {
		return err
	}
	return s.stream.SendMsg(msg)
}

// CloseAndRecv ends the stream and waits for the server to finish with it.
func (s *InputStream) CloseAndRecv() error {
	if err := s.stream.CloseSend(); err != nil {
		return err
	}
	return s.stream.RecvMsg(new(emptypb.Empty))
}
