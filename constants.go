package main

// Version is the potato release, printed by --version.
const Version = "1.0.0"
