// Package l2scans owns Layer 2 (Scans) of the LiDAR sample model.
//
// Responsibilities: deriving the per-channel point budget of one
// revolution, accumulating packets until a revolution's worth of points
// has arrived, and encoding the accumulated points into the fixed
// channels × points × 5 float32 sample layout used by training pipelines.
//
// Dependency rule: L2 may depend on L1, but never on the pipeline or
// storage packages.
package l2scans
