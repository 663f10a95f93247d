// Command client replays a recorded input script against a running
// emulator over its gRPC API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/scottjcrouch/ScootNES/console"
	"github.com/scottjcrouch/ScootNES/server"
)

// frameTime is one NTSC frame.
const frameTime = time.Second * 1000 / 60098

func main() {
	scriptFile := flag.String("script", "", "Path to the recorded script file to replay")
	addr := flag.String("addr", "localhost:50051", "emulator gRPC address")
	player := flag.Int("player", 1, "controller port to drive (1 or 2)")
	delay := flag.Duration("delay", 2*time.Second, "wait before starting the replay")
	flag.Parse()

	if *scriptFile == "" {
		log.Fatalf("Please provide a script file using -script <file.script>")
	}

	file, err := os.Open(*scriptFile)
	if err != nil {
		log.Fatalf("Failed to open script file: %v", err)
	}
	steps, err := console.ParseScript(file)
	file.Close()
	if err != nil {
		log.Fatalf("%s: %v", *scriptFile, err)
	}

	log.Printf("Connecting to emulator on %s...", *addr)
	client, err := server.Dial(*addr)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	stream, err := client.StreamInput(context.Background())
	if err != nil {
		log.Fatalf("failed to open stream: %v", err)
	}

	log.Printf("Connected! Starting replay of %s in %v...", *scriptFile, *delay)
	time.Sleep(*delay)

	for _, step := range steps {
		if err := stream.Send(*player, step.Buttons); err != nil {
			log.Fatalf("failed to send state: %v", err)
		}
		time.Sleep(time.Duration(step.Frames) * frameTime)
	}

	// Release everything before hanging up.
	if err := stream.Send(*player, [8]bool{}); err != nil {
		log.Printf("failed to release buttons: %v", err)
	}
	if err := stream.CloseAndRecv(); err != nil {
		log.Printf("failed to close stream: %v", err)
	}
	log.Println("Replay complete. Disconnected.")
}
