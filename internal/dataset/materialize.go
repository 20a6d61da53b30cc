package dataset

import (
	"path/filepath"

	"github.com/gamesight/training-pipeline/internal/storage"
)

// Materialize lays the split out on disk: the four leaf directories are
// cleared and recreated, then every pair is copied in with its original
// name and modification time. Any I/O failure aborts with the split
// partially written; rerunning from a clean state is the recovery path.
func (p *Partitioner) Materialize(m *SplitManifest) error {
	dirs := []string{
		p.cfg.TrainImagesDir,
		p.cfg.TrainLabelsDir,
		p.cfg.ValImagesDir,
		p.cfg.ValLabelsDir,
	}
	for _, dir := range dirs {
		if err := storage.ClearDir(dir); err != nil {
			return err
		}
	}

	if err := copyPairs(m.Train, p.cfg.TrainImagesDir, p.cfg.TrainLabelsDir); err != nil {
		return err
	}
	return copyPairs(m.Val, p.cfg.ValImagesDir, p.cfg.ValLabelsDir)
}

func copyPairs(images []LabeledImage, imagesDir, labelsDir string) error {
	for _, img := range images {
		if err := storage.CopyFile(img.ImagePath, filepath.Join(imagesDir, filepath.Base(img.ImagePath))); err != nil {
			return err
		}
		if err := storage.CopyFile(img.LabelPath, filepath.Join(labelsDir, filepath.Base(img.LabelPath))); err != nil {
			return err
		}
	}
	return nil
}
