package types

// Version is the canonical project version. The CLI, the player document
// generator, and the injected runtime shim all report this constant.
const Version = "0.3.0"
