// Package server exposes a running console over gRPC: register and memory
// inspection, execution control, save states and remote controller input.
//
// Messages are protobuf well-known types so no generated code is needed.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/scottjcrouch/ScootNES/console"
	"github.com/scottjcrouch/ScootNES/controller"
)

// Emulator is the part of console.Console the service drives.
type Emulator interface {
	HasCartridge() bool
	GetCPUState() console.CPUState
	Read(addr uint16) byte
	GetMemoryBlock(addr uint16, size int) []byte
	GetFramePixels() []byte
	Disassemble(addr uint16, count int) []string
	SetPaused(paused bool)
	Step()
	Reset()
	SaveState(filename string) error
	LoadState(filename string) error
	SetRemoteButtons(player int, buttons [8]bool)
}

// Server implements the scootnes.Debugger service.
type Server struct {
	mu       sync.Mutex
	emu      Emulator
	listener net.Listener
	server   *grpc.Server
}

// New creates a Server with no emulator attached. Calls fail with
// FailedPrecondition until Attach is called.
func New() *Server {
	return &Server{}
}

// Attach connects the emulator the service operates on.
func (s *Server) Attach(emu Emulator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emu = emu
}

func (s *Server) emulator() (Emulator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emu == nil {
		return nil, status.Error(codes.FailedPrecondition, "emulator not attached")
	}
	return s.emu, nil
}

// running is emulator() plus a loaded cartridge.
func (s *Server) running() (Emulator, error) {
	emu, err := s.emulator()
	if err != nil {
		return nil, err
	}
	if !emu.HasCartridge() {
		return nil, status.Error(codes.FailedPrecondition, "no cartridge loaded")
	}
	return emu, nil
}

// Register adds the service to g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis
	s.server = grpc.NewServer()
	s.Register(s.server)

	log.Printf("gRPC server listening on %s", lis.Addr())
	go func() {
		if err := s.server.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	if s.server != nil {
		s.server.GracefulStop()
	}
}

// GetCPUState returns the processor registers.
func (s *Server) GetCPUState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	emu, err := s.emulator()
	if err != nil {
		return nil, err
	}
	st := emu.GetCPUState()
	return structpb.NewStruct(map[string]any{
		"a":      int(st.A),
		"x":      int(st.X),
		"y":      int(st.Y),
		"sp":     int(st.SP),
		"p":      int(st.P),
		"pc":     int(st.PC),
		"cycles": st.Cycles,
		"halted": st.Halted,
	})
}

// ReadMemory returns the byte at the requested CPU address.
func (s *Server) ReadMemory(ctx context.Context, in *wrapperspb.UInt32Value) (*wrapperspb.UInt32Value, error) {
	emu, err := s.emulator()
	if err != nil {
		return nil, err
	}
	if in.GetValue() > 0xFFFF {
		return nil, status.Errorf(codes.InvalidArgument, "address %#x out of range", in.GetValue())
	}
	return wrapperspb.UInt32(uint32(emu.Read(uint16(in.GetValue())))), nil
}

// ReadMemoryBlock returns "size" bytes from "address".
func (s *Server) ReadMemoryBlock(ctx context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	emu, err := s.emulator()
	if err != nil {
		return nil, err
	}
	addr := in.GetFields()["address"].GetNumberValue()
	size := in.GetFields()["size"].GetNumberValue()
	if addr < 0 || addr > 0xFFFF || size < 0 || size > 0x10000 {
		return nil, status.Errorf(codes.InvalidArgument, "block %v+%v out of range", addr, size)
	}
	return wrapperspb.Bytes(emu.GetMemoryBlock(uint16(addr), int(size))), nil
}

// GetFrame returns the last completed frame as RGBA bytes.
func (s *Server) GetFrame(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	emu, err := s.emulator()
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bytes(emu.GetFramePixels()), nil
}

// Disassemble decodes "count" instructions from "address".
func (s *Server) Disassemble(ctx context.Context, in *structpb.Struct) (*structpb.ListValue, error) {
	emu, err := s.emulator()
	if err != nil {
		return nil, err
	}
	addr := in.GetFields()["address"].GetNumberValue()
	count := in.GetFields()["count"].GetNumberValue()
	if addr < 0 || addr > 0xFFFF || count < 0 || count > 256 {
		return nil, status.Errorf(codes.InvalidArgument, "disassemble %v lines at %v", count, addr)
	}

	lines := emu.Disassemble(uint16(addr), int(count))
	values := make([]any, len(lines))
	for i, l := range lines {
		values[i] = l
	}
	return structpb.NewList(values)
}

// Pause suspends the emulator loop.
func (s *Server) Pause(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	emu, err := s.emulator()
	if err != nil {
		return nil, err
	}
	emu.SetPaused(true)
	return &emptypb.Empty{}, nil
}

// Resume restarts the emulator loop.
func (s *Server) Resume(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	emu, err := s.emulator()
	if err != nil {
		return nil, err
	}
	emu.SetPaused(false)
	return &emptypb.Empty{}, nil
}

// Step runs one instruction.
func (s *Server) Step(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	emu, err := s.running()
	if err != nil {
		return nil, err
	}
	emu.Step()
	return &emptypb.Empty{}, nil
}

// Reset presses the console's reset button.
func (s *Server) Reset(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	emu, err := s.running()
	if err != nil {
		return nil, err
	}
	emu.Reset()
	return &emptypb.Empty{}, nil
}

// SaveState writes a snapshot to the named file on the emulator host.
func (s *Server) SaveState(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	emu, err := s.running()
	if err != nil {
		return nil, err
	}
	if err := emu.SaveState(in.GetValue()); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to save state: %v", err)
	}
	return &emptypb.Empty{}, nil
}

// LoadState restores a snapshot from the named file on the emulator host.
func (s *Server) LoadState(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	emu, err := s.running()
	if err != nil {
		return nil, err
	}
	if err := emu.LoadState(in.GetValue()); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to load state: %v", err)
	}
	return &emptypb.Empty{}, nil
}

// streamInput applies controller updates until the client closes the
// stream. Each message carries "player" (1 or 2, 0 meaning 1) and
// "buttons" in input script form.
func (s *Server) streamInput(stream grpc.ServerStream) error {
	emu, err := s.emulator()
	if err != nil {
		return err
	}
	for {
		in := new(structpb.Struct)
		err := stream.RecvMsg(in)
		if errors.Is(err, io.EOF) {
			return stream.SendMsg(&emptypb.Empty{})
		}
		if err != nil {
			return err
		}

		buttons, err := controller.ParseButtons(in.GetFields()["buttons"].GetStringValue())
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		switch player := int(in.GetFields()["player"].GetNumberValue()); player {
		case 0, 1:
			emu.SetRemoteButtons(0, buttons)
		case 2:
			emu.SetRemoteButtons(1, buttons)
		default:
			return status.Errorf(codes.InvalidArgument, "no controller port %d", player)
		}
	}
}
