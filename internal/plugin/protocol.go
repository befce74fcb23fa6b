package plugin

import "time"

// EnvSocketPath is the environment variable a spawned prism reads to learn
// which Unix socket to listen on.
const EnvSocketPath = "UV_SOCKET_PATH"

// DefaultReadyTimeout bounds how long Spawn waits for a freshly started
// prism to create and accept connections on its socket.
const DefaultReadyTimeout = 5 * time.Second

// DefaultStopGrace bounds how long Stop waits for a SIGTERM'd prism to exit
// before escalating to SIGKILL.
const DefaultStopGrace = 3 * time.Second
