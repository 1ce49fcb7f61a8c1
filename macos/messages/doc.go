// Package messages watches and drives the macOS Messages app.
//
// The package is intended for computer-use automation scripts and bots.
//
// Data sources
//
//   - SQLite (~/Library/Messages/chat.db): read-only polling for new messages
//     and recent chats.
//   - AppleScript (Messages.app): sending text and files, name/handle lookups.
//
// Exported API (recommended usage order)
//
//  1. NewSession(store, cfg) then Session.Start(ctx)
//     Poll the store every five seconds and publish each unseen message once.
//     Start returns a Notifier immediately and is idempotent.
//  2. Notifier.Subscribe(buffer)
//     Receive EventMessage and EventError values. Subscribing before Start
//     guarantees the first cycle is observed. The channel closes when the
//     session halts.
//  3. Automator.Send / SendFile / HandleForName / NameForHandle
//     Talk to Messages.app through osascript.
//  4. ChatDB.RecentChats(ctx, limit)
//     List recent conversations.
//
// Timestamps
//
// chat.db counts time from 2001-01-01T00:00:00Z. macOS 10.13 and later write
// nanoseconds ("packed"), older releases write seconds, and real databases mix
// both. DecodeTime guesses per value; EncodeTime follows the OS version, which
// only matters for the polling cursor.
//
// Operational notes
//
//   - A store query failure halts the session permanently: one EventError is
//     published and no further polling happens.
//   - Sending requires macOS Automation permission for the calling process to
//     control Messages.app (System Settings -> Privacy & Security -> Automation).
//   - Reading chat.db requires Full Disk Access for the calling process.
//   - SQLite access uses github.com/mattn/go-sqlite3 (CGO required).
package messages
