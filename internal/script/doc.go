// Package script renders the Python program handed to the external 3D
// Slicer process. The script imports the validated series, segments it by
// threshold, builds and simplifies a surface mesh, writes a binary STL, and
// reports its outcome through JSON marker files in the job work directory.
package script
