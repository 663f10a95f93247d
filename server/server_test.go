package server

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/scottjcrouch/ScootNES/bus"
	"github.com/scottjcrouch/ScootNES/console"
	"github.com/scottjcrouch/ScootNES/controller"
)

func writeROM(t *testing.T, code []byte) string {
	t.Helper()
	prg := make([]byte, 0x8000)
	copy(prg, code)
	copy(prg[0x7FFA:], []byte{0x00, 0x80, 0x00, 0x80, 0x00, 0x80})
	image := append([]byte{'N', 'E', 'S', 0x1A, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, prg...)
	image = append(image, make([]byte, 0x2000)...)

	path := filepath.Join(t.TempDir(), "test.nes")
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// serve starts s on an in-memory listener and returns a connected client.
func serve(t *testing.T, s *Server) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	g := grpc.NewServer()
	s.Register(g)
	go g.Serve(lis)
	t.Cleanup(g.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(conn)
	t.Cleanup(func() { client.Close() })
	return client
}

func setup(t *testing.T) (*console.Console, *Client) {
	t.Helper()
	// LDA #$42; STA $0300; loop
	c := console.New(bus.New())
	if err := c.LoadROM(writeROM(t, []byte{0xA9, 0x42, 0x8D, 0x00, 0x03, 0x4C, 0x05, 0x80})); err != nil {
		t.Fatal(err)
	}
	s := New()
	s.Attach(c)
	return c, serve(t, s)
}

func TestNotAttached(t *testing.T) {
	client := serve(t, New())
	_, err := client.GetCPUState(context.Background())
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("GetCPUState without emulator: %v", err)
	}
}

func TestNoCartridge(t *testing.T) {
	s := New()
	s.Attach(console.New(bus.New()))
	client := serve(t, s)
	if err := client.Step(context.Background()); status.Code(err) != codes.FailedPrecondition {
		t.Errorf("Step without cartridge: %v", err)
	}
}

func TestInspection(t *testing.T) {
	c, client := setup(t)
	ctx := context.Background()
	c.RunFrame()

	st, err := client.GetCPUState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st != c.GetCPUState() {
		t.Errorf("remote state %+v, local %+v", st, c.GetCPUState())
	}
	if st.A != 0x42 {
		t.Errorf("A = %02X", st.A)
	}

	v, err := client.ReadMemory(ctx, 0x0300)
	if err != nil || v != 0x42 {
		t.Errorf("ReadMemory = %02X, %v", v, err)
	}

	block, err := client.ReadMemoryBlock(ctx, 0x8000, 3)
	if err != nil || !bytes.Equal(block, []byte{0xA9, 0x42, 0x8D}) {
		t.Errorf("ReadMemoryBlock = % X, %v", block, err)
	}
	if _, err := client.ReadMemoryBlock(ctx, 0, 0x20000); status.Code(err) != codes.InvalidArgument {
		t.Errorf("oversized block: %v", err)
	}

	frame, err := client.GetFrame(ctx)
	if err != nil || len(frame) != 256*240*4 {
		t.Errorf("GetFrame = %d bytes, %v", len(frame), err)
	}

	lines, err := client.Disassemble(ctx, 0x8000, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"8000  LDA #$42", "8002  STA $0300", "8005  JMP $8005"}
	for i := range want {
		if i >= len(lines) || lines[i] != want[i] {
			t.Errorf("disassembly = %q, want %q", lines, want)
			break
		}
	}
}

func TestExecutionControl(t *testing.T) {
	c, client := setup(t)
	ctx := context.Background()

	if err := client.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if !c.Paused() {
		t.Error("Pause did not pause")
	}

	client.Step(ctx) // reset sequence
	client.Step(ctx)
	st, _ := client.GetCPUState(ctx)
	if st.PC != 0x8002 || st.A != 0x42 {
		t.Errorf("after step PC=%04X A=%02X", st.PC, st.A)
	}

	if err := client.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if c.GetCPUState().Cycles != 0 {
		t.Error("Reset did not restart the CPU")
	}

	if err := client.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Paused() {
		t.Error("Resume did not resume")
	}
}

func TestStates(t *testing.T) {
	c, client := setup(t)
	ctx := context.Background()
	c.RunFrame()

	path := filepath.Join(t.TempDir(), "remote.state")
	if err := client.SaveState(ctx, path); err != nil {
		t.Fatal(err)
	}
	want := c.GetCPUState()
	c.RunFrame()
	if err := client.LoadState(ctx, path); err != nil {
		t.Fatal(err)
	}
	if c.GetCPUState() != want {
		t.Error("LoadState did not restore the CPU")
	}

	if err := client.LoadState(ctx, filepath.Join(t.TempDir(), "missing")); status.Code(err) != codes.Internal {
		t.Errorf("loading a missing file: %v", err)
	}
}

func TestStreamInput(t *testing.T) {
	c, client := setup(t)
	stream, err := client.StreamInput(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := stream.Send(1, [8]bool{controller.ButtonStart: true}); err != nil {
		t.Fatal(err)
	}
	if err := stream.Send(2, [8]bool{controller.ButtonLeft: true}); err != nil {
		t.Fatal(err)
	}
	if err := stream.CloseAndRecv(); err != nil {
		t.Fatal(err)
	}

	if !c.Buttons(0)[controller.ButtonStart] {
		t.Error("player 1 input not applied")
	}
	if !c.Buttons(1)[controller.ButtonLeft] {
		t.Error("player 2 input not applied")
	}
}
