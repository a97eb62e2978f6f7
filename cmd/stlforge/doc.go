// Command stlforge converts directories of medical image slices into
// printable STL meshes by supervising a headless 3D Slicer process.
package main
