// Package domain holds the types and ports shared by the store, the adb
// bridge, the use cases and the presentation layers. It performs no I/O.
package domain
