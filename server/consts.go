package server

// tsload version
const VERSION = "0.3.0"
