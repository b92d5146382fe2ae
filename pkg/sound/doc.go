// ABOUTME: Sound player package for background playback of audio cues
// ABOUTME: Admits play requests one at a time and streams each on its own goroutine
// Package sound plays audio resources in the background.
//
// A Player validates each request synchronously: the resource is opened,
// its header decoded and the format checked against the output device.
// Requests are admitted one at a time; once a request is admitted its
// playback runs on a separate goroutine and Play returns.
//
// Play fails with *audio.UnsupportedFormatError when the device cannot
// render the format and *audio.IOError when the resource cannot be read.
// Failures after admission are delivered through Config.OnEvent, the
// logger and Session.Err.
//
// Example:
//
//	dev, _ := output.New("oto", output.Options{})
//	player, err := sound.New(sound.Config{Device: dev})
//	if err != nil {
//	    return err
//	}
//
//	if _, err := player.Play("doorbell.wav"); err != nil {
//	    return err
//	}
//	player.Wait()
package sound
