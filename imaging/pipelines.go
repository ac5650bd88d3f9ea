package imaging

import (
	"image"

	"github.com/ShopRunner/wildebeest/fetch"
	"github.com/ShopRunner/wildebeest/pipeline"
)

// DownloadPipeline returns a pipeline that downloads images with client,
// applies ops in order, and writes the results out atomically.
func DownloadPipeline(client *fetch.Client, ops ...pipeline.Op[image.Image]) *pipeline.Pipeline[image.Image] {
	return pipeline.New(pipeline.Load(FromURL(client)), pipeline.Write(Write), ops...)
}

// ConvertPipeline returns a pipeline that reads local images, applies ops in
// order, and writes the results out atomically. The run's PathFunc decides
// the output format through the file extension.
func ConvertPipeline(ops ...pipeline.Op[image.Image]) *pipeline.Pipeline[image.Image] {
	return pipeline.New(pipeline.Load(FromDisk), pipeline.Write(Write), ops...)
}
