package tui

// ChatHelp is the markdown shown in the chat help overlay.
const ChatHelp = `# Chat

Type a message and press **Enter** to send it. The reply streams in as it
is generated.

## Keys

| Key | Action |
|-----|--------|
| Enter | Send the current input |
| Ctrl+P | Switch provider |
| Ctrl+O | Pick a model (local backends) |
| Ctrl+S | Open settings |
| ? | Toggle this help |
| Esc / Ctrl+C | Quit |

## Providers

- **Mistral** and **Google Gemini** are hosted APIs and need an API key
  (set one under settings, it is stored outside the config file).
- **LM Studio** and **Ollama** are local servers; only a base URL is
  needed. Make sure the server is running before you send.
`

// SettingsHelp is the markdown shown in the settings help overlay.
const SettingsHelp = `# Settings

Use **Tab** to move between fields, **Enter** to save, **Esc** to go back.

The API key is written to the secret store (~/.llmchat/secrets.json,
owner-only permissions), never to the YAML config. Leave the base URL
empty to use the backend's default endpoint.
`
