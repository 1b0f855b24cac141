package main

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/camdetect/camera"
	"github.com/nvr-ai/camdetect/controller"
	"github.com/nvr-ai/camdetect/frames"
)

type window struct {
	win     *gocv.Window
	overlay camera.Overlay
}

func newWindow(title string) *window {
	return &window{win: gocv.NewWindow(title), overlay: camera.NewOverlay()}
}

// show draws the latest snapshot over frame. It reports true when the user
// pressed q or Esc.
func (w *window) show(frame frames.Frame, ctl *controller.Controller) (bool, error) {
	img, err := camera.FrameToMat(frame)
	if err != nil {
		return false, err
	}
	defer img.Close()

	if err := w.overlay.DrawROI(&img, ctl.ROI()); err != nil {
		return false, err
	}
	drawn, err := w.overlay.Draw(&img, ctl.Latest())
	if err != nil {
		return false, err
	}
	status := fmt.Sprintf("%s | objects: %d | frame %d", ctl.State(), drawn, frame.ID)
	if err := w.overlay.DrawStatus(&img, status); err != nil {
		return false, err
	}

	w.win.IMShow(img)
	key := w.win.WaitKey(1)
	return key == 'q' || key == 27, nil
}

func (w *window) Close() error {
	return w.win.Close()
}
