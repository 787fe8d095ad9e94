package mcpserver

// DesktopGuide describes the desktop model for LLM consumers of the tools.
const DesktopGuide = `# HedgeyOS Desktop Guide

The desktop is a set of windows over an encrypted file store.

## Windows

Each window has an id (` + "`w1`, `w2`" + `, ...), a kind and a title. Kinds:

- ` + "`files`" + ` lists stored notes and uploads. Section ` + "`documents`" + ` is the drop target.
- ` + "`browser`" + ` shows a URL. Known media and document links are embedded.
- ` + "`app`" + ` shows a fixed URL in a frame. Unknown kinds open as apps.
- ` + "`notes`" + ` edits one note with autosave.
- ` + "`terminal`" + ` hosts the terminal emulator.
- ` + "`themes`" + ` selects the theme and dark mode.

Use ` + "`list_windows`" + ` to see windows topmost first. ` + "`open_window`" + ` focuses the new
window. ` + "`close_window`" + ` flushes pending edits before the window goes away.

## Files

Records are notes (` + "`kind: note`" + `, plain text) or uploads (` + "`kind: file`" + `).
Names are unique across the store: saving a second "todo" yields "todo 2".
Every body is encrypted. While the key is protected by a passphrase and locked,
reads and writes wait until it is unlocked.

- ` + "`list_files`" + ` returns metadata, newest first.
- ` + "`read_note`" + ` returns the decrypted text of a note by id.
- ` + "`save_note`" + ` creates a note, or updates one when ` + "`id`" + ` is given.
- ` + "`import_file`" + ` stores a file fetched from an http(s) URL or a base64 data URI,
  exactly like a file dropped on the desktop.
`
