// Package pipeline drives packets from a source through the scan
// accumulator and encoder into a sample writer.
//
// This package is the composition root for a conversion run: it imports
// l1packets and l2scans, and storage packages implement its SampleWriter
// interface without importing it back.
package pipeline
