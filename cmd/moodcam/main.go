// Command moodcam reports the dominant emotion of every face in front of a
// camera.
//
// With no arguments it opens camera 0 in a window titled "Video", analyzes
// every frame and quits when q is pressed.
package main

func main() {
	Execute()
}
