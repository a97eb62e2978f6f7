package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/template"

	"stlforge/internal/config"
	"stlforge/internal/dicom"
	"stlforge/internal/services"
)

const (
	scriptName        = "convert.py"
	successMarkerName = "convert.success"
	errorMarkerName   = "convert.error"
	databaseDirName   = "dicom-db"
)

// Script describes one generated conversion script and the files the
// external tool is expected to produce when it runs.
type Script struct {
	Path          string
	OutputPath    string
	SuccessMarker string
	ErrorMarker   string
	DatabaseDir   string
}

// Generator renders the Python program handed to the reconstruction tool.
// Rendering is deterministic: the same series, output path, and parameters
// always produce byte-identical script content.
type Generator struct {
	cfg *config.Config
}

// NewGenerator returns a generator bound to the given configuration.
func NewGenerator(cfg *config.Config) *Generator {
	return &Generator{cfg: cfg}
}

// Generate renders the conversion script for one series into workDir and
// returns the script descriptor. The work directory is created if needed.
func (g *Generator) Generate(workDir string, series *dicom.Series, outputPath string, params Params) (*Script, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrGeneration, "script", "generate", "create work directory", err)
	}

	script := &Script{
		Path:          filepath.Join(workDir, scriptName),
		OutputPath:    outputPath,
		SuccessMarker: filepath.Join(workDir, successMarkerName),
		ErrorMarker:   filepath.Join(workDir, errorMarkerName),
		DatabaseDir:   filepath.Join(workDir, databaseDirName),
	}

	content, err := render(script, series, params)
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "script", "generate", "render script", err)
	}
	if err := os.WriteFile(script.Path, content, 0o644); err != nil {
		return nil, services.Wrap(services.ErrGeneration, "script", "generate", "write script", err)
	}
	return script, nil
}

type templateData struct {
	SlicePaths          string
	OutputPath          string
	SuccessMarker       string
	ErrorMarker         string
	DatabaseDir         string
	Threshold           int
	Smoothing           bool
	SmoothingIterations int
	Decimation          string
}

func render(script *Script, series *dicom.Series, params Params) ([]byte, error) {
	paths, err := pythonStringList(series.SlicePaths())
	if err != nil {
		return nil, fmt.Errorf("encode slice paths: %w", err)
	}
	data := templateData{
		SlicePaths:          paths,
		OutputPath:          pythonString(script.OutputPath),
		SuccessMarker:       pythonString(script.SuccessMarker),
		ErrorMarker:         pythonString(script.ErrorMarker),
		DatabaseDir:         pythonString(script.DatabaseDir),
		Threshold:           params.Threshold,
		Smoothing:           params.Smoothing,
		SmoothingIterations: params.SmoothingIterations,
		Decimation:          strconv.FormatFloat(params.Decimation, 'g', -1, 64),
	}

	var buf bytes.Buffer
	if err := conversionTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pythonString renders a Go string as a quoted Python string literal. JSON
// string encoding is a strict subset of Python's literal syntax.
func pythonString(value string) string {
	encoded, _ := json.Marshal(value)
	return string(encoded)
}

func pythonStringList(values []string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("[\n")
	for _, value := range values {
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		buf.WriteString("    ")
		buf.Write(encoded)
		buf.WriteString(",\n")
	}
	buf.WriteString("]")
	return buf.String(), nil
}

var conversionTemplate = template.Must(template.New("convert").Parse(`import json
import os
import traceback

import slicer
import vtk
from DICOMLib import DICOMUtils

SLICE_FILES = {{.SlicePaths}}
OUTPUT_PATH = {{.OutputPath}}
SUCCESS_MARKER = {{.SuccessMarker}}
ERROR_MARKER = {{.ErrorMarker}}
DATABASE_DIR = {{.DatabaseDir}}

THRESHOLD = {{.Threshold}}
SMOOTHING = {{if .Smoothing}}True{{else}}False{{end}}
SMOOTHING_ITERATIONS = {{.SmoothingIterations}}
DECIMATION = {{.Decimation}}


def write_marker(path, payload):
    with open(path, "w") as handle:
        json.dump(payload, handle)


def load_volume():
    with DICOMUtils.TemporaryDICOMDatabase(DATABASE_DIR) as database:
        DICOMUtils.importFromFiles(database, SLICE_FILES)
        patient_ids = database.patients()
        if not patient_ids:
            raise RuntimeError("no patients found in imported series")
        loaded = DICOMUtils.loadPatientByUID(patient_ids[0])
        if not loaded:
            raise RuntimeError("failed to load imported series as a volume")
    volume = slicer.mrmlScene.GetFirstNodeByClass("vtkMRMLScalarVolumeNode")
    if volume is None:
        raise RuntimeError("no scalar volume in scene after import")
    return volume


def segment(volume):
    threshold = vtk.vtkImageThreshold()
    threshold.SetInputData(volume.GetImageData())
    threshold.ThresholdByUpper(THRESHOLD)
    threshold.SetInValue(1)
    threshold.SetOutValue(0)
    threshold.SetOutputScalarTypeToUnsignedChar()
    threshold.Update()

    closing = vtk.vtkImageOpenClose3D()
    closing.SetInputConnection(threshold.GetOutputPort())
    closing.SetOpenValue(0)
    closing.SetCloseValue(1)
    closing.SetKernelSize(3, 3, 3)
    closing.Update()
    return closing.GetOutput()


def build_mesh(label_image, volume):
    surface = vtk.vtkDiscreteFlyingEdges3D()
    surface.SetInputData(label_image)
    surface.SetValue(0, 1)
    surface.Update()

    transform = vtk.vtkTransform()
    matrix = vtk.vtkMatrix4x4()
    volume.GetIJKToRASMatrix(matrix)
    transform.SetMatrix(matrix)
    to_physical = vtk.vtkTransformPolyDataFilter()
    to_physical.SetInputConnection(surface.GetOutputPort())
    to_physical.SetTransform(transform)
    to_physical.Update()
    mesh = to_physical

    if SMOOTHING:
        smoother = vtk.vtkWindowedSincPolyDataFilter()
        smoother.SetInputConnection(mesh.GetOutputPort())
        smoother.SetNumberOfIterations(SMOOTHING_ITERATIONS)
        smoother.BoundarySmoothingOff()
        smoother.FeatureEdgeSmoothingOff()
        smoother.NonManifoldSmoothingOn()
        smoother.NormalizeCoordinatesOn()
        smoother.Update()
        mesh = smoother

    if DECIMATION > 0:
        decimator = vtk.vtkDecimatePro()
        decimator.SetInputConnection(mesh.GetOutputPort())
        decimator.SetTargetReduction(DECIMATION)
        decimator.PreserveTopologyOn()
        decimator.Update()
        mesh = decimator

    return mesh


def export_stl(mesh):
    writer = vtk.vtkSTLWriter()
    writer.SetInputConnection(mesh.GetOutputPort())
    writer.SetFileName(OUTPUT_PATH)
    writer.SetFileTypeToBinary()
    if writer.Write() != 1:
        raise RuntimeError("STL writer reported failure")
    if not os.path.isfile(OUTPUT_PATH) or os.path.getsize(OUTPUT_PATH) == 0:
        raise RuntimeError("STL output missing or empty")


def convert():
    volume = load_volume()
    label_image = segment(volume)
    mesh = build_mesh(label_image, volume)
    if mesh.GetOutput().GetNumberOfCells() == 0:
        raise RuntimeError("segmentation produced an empty mesh; adjust the threshold")
    export_stl(mesh)


def main():
    try:
        convert()
        write_marker(SUCCESS_MARKER, {"status": "success", "output": OUTPUT_PATH})
    except Exception as exc:
        write_marker(ERROR_MARKER, {"status": "error", "message": str(exc) or traceback.format_exc()})
    finally:
        slicer.util.exit(0)


main()
`))
