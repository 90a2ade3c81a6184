// Package estimator defines the interface the synchronization core talks
// to. The nonlinear sliding-window optimizer itself is out of scope (spec
// §1); this is the narrow port the dispatcher and mechanizer are allowed to
// call into.
package estimator

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/gnss-vio/gvins-core/measurement"
)

// SolverFlag reports which phase the sliding-window optimizer is in.
type SolverFlag int

const (
	// Initial means the optimizer has not yet produced a usable window;
	// the high-rate publisher must stay quiet and the mechanizer must not
	// be reseeded from window state.
	Initial SolverFlag = iota
	// NonLinear means the optimizer has a converged window and both the
	// high-rate publisher and mechanizer reseeding are active.
	NonLinear
)

// WindowState is the tail of the sliding window the mechanizer reseeds
// itself from after every optimization.
type WindowState struct {
	T          float64 // timestamp of the window's last keyframe
	P          r3.Vector
	Q          quat.Number
	V          r3.Vector
	BiasAccel  r3.Vector
	BiasGyro   r3.Vector
	PrevAccel  r3.Vector
	PrevGyro   r3.Vector
}

// ImageFeature is one camera's observation of a tracked point, keyed by
// feature id in the map the dispatcher builds for ProcessImage.
type ImageFeature struct {
	Cam      int
	X, Y, Z  float64
	U, V     float64
	VX, VY   float64
}

// Pose is a rigid-body pose: position and orientation.
type Pose struct {
	P r3.Vector
	Q quat.Number
}

// KeyPose is one keyframe's pose in the sliding window's key-pose set
// (the original's pubKeyPoses).
type KeyPose struct {
	TLocal float64
	Pose   Pose
}

// Landmark is one triangulated point in the landmark point cloud (the
// original's pubPointCloud).
type Landmark struct {
	ID int
	P  r3.Vector
}

// Transform is one named rigid transform in the published TF set (the
// original's pubTF): e.g. "world"->"body", body->camera extrinsics.
type Transform struct {
	Frame string
	Pose  Pose
}

// Keyframe is the marker published for the window's newest keyframe (the
// original's pubKeyframe).
type Keyframe struct {
	TLocal float64
	Pose   Pose
}

// OptimizationResult is the per-optimization publication bundle C6 step 6
// fans out (spec §4.6 step 6; §6's "per-optimization odometry, key-pose
// set, camera pose, landmark point cloud, transform frames, keyframe
// marker"). Odometry itself is covered separately by the high-rate
// publisher (§4.4); this covers the other five.
type OptimizationResult struct {
	KeyPoses   []KeyPose
	CameraPose Pose
	Landmarks  []Landmark
	Transforms []Transform
	Keyframe   Keyframe
}

// Header is the minimal timestamp/frame metadata carried through the
// dispatcher to the publications; transport/serialization concerns beyond
// this are out of scope.
type Header struct {
	TLocal  float64
	FrameID string
}

// Estimator is the external collaborator the dispatcher and mechanizer
// drive. Implementations own their own internal locking (spec §5: "the
// estimator is single-writer (dispatcher); ephemeris/iono callbacks write
// to the estimator under an internal lock owned by the estimator").
type Estimator interface {
	ProcessIMU(dt float64, accel, gyro r3.Vector)
	ProcessGNSS(epoch measurement.GNSSEpoch)
	ProcessImage(image map[int][]ImageFeature, header Header)

	InputEphemeris(ephem measurement.Ephemeris)
	InputIonoParams(params measurement.IonoParams)
	InputGNSSTimeDiff(delta float64)

	ClearState()
	SetParameter()

	SolverFlag() SolverFlag
	Gravity() r3.Vector
	LatestWindowState() WindowState
	LatestOptimization() OptimizationResult
	TimeOffset() float64 // td: the visual/IMU time offset the synchronizer and dispatcher use
}
