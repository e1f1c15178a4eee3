package ipc

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"resty.dev/v3"
)

func newClient() *resty.Client {
	path := SocketPath()

	client := resty.NewWithClient(&http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", path)
			},
		},
	})

	client.SetBaseURL("http://layerpaper")
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "layerpaper")

	return client
}

func do(req func(c *resty.Client, result *Response) (*resty.Response, error)) (*Response, error) {
	client := newClient()
	defer client.Close()

	result := Response{}
	response, err := req(client, &result)
	if err != nil {
		return nil, err
	}

	if result.Status == "error" {
		return &result, fmt.Errorf("%s: %s", result.Kind, result.Message)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("control request failed: %s", response.Status())
	}

	return &result, nil
}

func SendStatus() (*Response, error) {
	return do(func(c *resty.Client, result *Response) (*resty.Response, error) {
		return c.R().SetResult(result).Get("/status")
	})
}

func SendGetWallpaper(output string) (*Response, error) {
	return do(func(c *resty.Client, result *Response) (*resty.Response, error) {
		r := c.R().SetResult(result).SetError(result)
		if output != "" {
			r.SetQueryParam("output", output)
		}
		return r.Get("/wallpaper")
	})
}

func SendSetWallpaper(output, path string) (*Response, error) {
	return do(func(c *resty.Client, result *Response) (*resty.Response, error) {
		return c.R().
			SetBody(SetWallpaperRequest{Output: output, Path: path}).
			SetResult(result).SetError(result).
			Post("/wallpaper")
	})
}

func SendPause(output string) (*Response, error) {
	return do(func(c *resty.Client, result *Response) (*resty.Response, error) {
		return c.R().
			SetBody(PauseRequest{Output: output}).
			SetResult(result).SetError(result).
			Post("/pause")
	})
}

func SendResume(output string) (*Response, error) {
	return do(func(c *resty.Client, result *Response) (*resty.Response, error) {
		return c.R().
			SetBody(PauseRequest{Output: output}).
			SetResult(result).SetError(result).
			Post("/resume")
	})
}

func SendReload() (*Response, error) {
	return do(func(c *resty.Client, result *Response) (*resty.Response, error) {
		return c.R().SetResult(result).SetError(result).Post("/reload")
	})
}

func SendStop() (*Response, error) {
	return do(func(c *resty.Client, result *Response) (*resty.Response, error) {
		return c.R().SetResult(result).Post("/stop")
	})
}
