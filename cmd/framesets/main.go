// Command framesets builds the split index artifacts of a video-frame
// dataset and inspects the samples the datasets package draws from them.
//
// Usage:
//
//	framesets index --manifest videos.csv --classes 101 --data-root index/
//	framesets inspect --data-root index/ --file-root frames/ --variant segments --samples 200
//
// Settings are read from ACTIONFRAMES_* environment variables, then from
// the YAML file given by --config, then from flags.
package main

func main() {
	Execute()
}
