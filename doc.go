/*
Package vtrack counts vehicles crossing a line and estimates their speed
from a fixed traffic camera.

Each frame's detections are filtered by confidence, class and a polygon
region of interest, de-duplicated with non-maximum suppression and then
associated into tracks with ByteTrack.  Tracked objects are counted as they
cross a reference line, and the bottom center of each box is mapped through
a perspective transform onto a flat ground plane, calibrated from four
points of a road segment of known size, where the vertical displacement
over about one second gives the speed.

The geometry, zone, tracker and speed subpackages hold the algorithms and
are usable on their own.  The detector, video and render subpackages adapt
OpenCV through gocv, and store and report persist and summarise a run.

See example/vehicle-speed for a command line program wiring it together.
*/
package vtrack
