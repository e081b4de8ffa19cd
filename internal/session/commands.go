package session

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
)

// Stopper accepts stop requests.
type Stopper interface {
	RequestStop(reason string) bool
}

// WatchCommands reads line commands from r until a quit command or EOF.
// "q", "quit" and "exit" request a stop.
func WatchCommands(r io.Reader, s Stopper, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		switch cmd := strings.ToLower(strings.TrimSpace(sc.Text())); cmd {
		case "":
		case "q", "quit", "exit":
			s.RequestStop("quit command")
			return
		default:
			log.Warn("unknown command", "command", cmd)
		}
	}
}
