// Package imessage is the index for a toolkit that watches and drives macOS
// Messages.
//
// This root package is documentation-only. Import specific subpackages to use
// concrete helpers.
//
// Available subpackages:
//   - github.com/spachava753/imessage/macos/messages
//     Polling sessions over chat.db, send and lookup automation, echo replies.
//   - github.com/spachava753/imessage/relay
//     Forwards received messages to an email inbox over SMTP.
//   - github.com/spachava753/imessage/cmd/imessage
//     Command-line front end (listen, send, send-file, handle, name, chats).
//
// Discovery workflow:
//   - Run: go doc github.com/spachava753/imessage
//   - Then drill in with:
//     go doc github.com/spachava753/imessage/macos/messages
//     go doc github.com/spachava753/imessage/relay
package imessage
