package fake

import (
	"context"
	"io"
	"testing"
	"time"

	"w3client/application/http"
	"w3client/application/inet"

	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type StackTestSuite struct {
	suite.Suite

	stack *Stack
}

func TestStackTestSuite(t *testing.T) {
	suite.Run(t, new(StackTestSuite))
}

func (s *StackTestSuite) SetupTest() {
	s.stack = New()
}

func (s *StackTestSuite) TearDownTest() {
	s.stack.Wait()
	goleak.VerifyNone(s.T())
}

func (s *StackTestSuite) connect(opts inet.SessionOptions, ep inet.Endpoint) (inet.Session, inet.Connection) {
	session, err := s.stack.Open(context.Background(), opts)
	s.Require().NoError(err)

	conn, err := session.Connect(context.Background(), ep)
	s.Require().NoError(err)
	return session, conn
}

func (s *StackTestSuite) TestHandleAccounting() {
	session, conn := s.connect(inet.SessionOptions{}, inet.Endpoint{Host: "example.com", Port: 80})
	s.Equal(2, s.stack.OpenHandles())

	req, err := conn.OpenRequest(context.Background(), inet.RequestOptions{Method: "GET", Target: "/"})
	s.Require().NoError(err)
	s.Equal(3, s.stack.OpenHandles())

	s.NoError(req.Close())
	s.NoError(req.Close()) // Closing twice releases once.
	s.NoError(conn.Close())
	s.NoError(session.Close())
	s.Zero(s.stack.OpenHandles())

	s.Equal([]string{
		"open session",
		"connect example.com:80",
		"open request GET /",
		"close request GET /",
		"close connection",
		"close session",
	}, s.stack.Events())
}

func (s *StackTestSuite) TestFaults() {
	s.stack.Fail(OpOpen, nil)
	_, err := s.stack.Open(context.Background(), inet.SessionOptions{})
	s.ErrorIs(err, ErrInjected)
	s.Zero(s.stack.OpenHandles())

	s.stack.Clear(OpOpen)
	session, err := s.stack.Open(context.Background(), inet.SessionOptions{})
	s.Require().NoError(err)
	defer session.Close()

	s.stack.Fail(OpConnect, io.ErrClosedPipe)
	_, err = session.Connect(context.Background(), inet.Endpoint{Host: "example.com"})
	s.ErrorIs(err, io.ErrClosedPipe)
	s.Equal(1, s.stack.OpenHandles())
}

func (s *StackTestSuite) TestRoundTrip() {
	s.stack.Route("/page", Response{
		StatusCode: 200,
		Fields: http.Fields{
			{Name: "Content-Length", Value: "5"},
			{Name: "Content-Type", Value: "text/plain"},
			{Name: "Set-Cookie", Value: "a=1"},
			{Name: "Set-Cookie", Value: "b=2"},
		},
		Body: []byte("hello"),
	})

	session, conn := s.connect(inet.SessionOptions{}, inet.Endpoint{Host: "example.com", Port: 80})
	defer session.Close()
	defer conn.Close()

	req, err := conn.OpenRequest(context.Background(), inet.RequestOptions{Method: "POST", Target: "/page", Referrer: "/ref"})
	s.Require().NoError(err)
	defer req.Close()

	s.Require().NoError(req.AddHeader("Accept", "text/html", inet.HeaderAdd))
	s.Require().NoError(req.AddHeader("Accept", "*/*", inet.HeaderReplace))
	s.Require().NoError(req.Send(context.Background(), []byte("a=b")))

	status, err := req.Query(inet.QueryStatusCode, 0)
	s.NoError(err)
	s.Equal("200", status)

	length, err := req.Query(inet.QueryContentLength, 0)
	s.NoError(err)
	s.Equal("5", length)

	cookie, err := req.Query(inet.QuerySetCookie, 1)
	s.NoError(err)
	s.Equal("b=2", cookie)

	_, err = req.Query(inet.QuerySetCookie, 2)
	s.ErrorIs(err, inet.ErrHeaderNotFound)

	raw, err := req.Query(inet.QueryRawHeaders, 0)
	s.NoError(err)
	s.Contains(raw, "HTTP/1.1 200 OK\r\n")
	s.Contains(raw, "Content-Type: text/plain\r\n")

	body, err := io.ReadAll(req)
	s.NoError(err)
	s.Equal("hello", string(body))

	captured := s.stack.Requests()
	s.Require().Len(captured, 1)
	s.Equal("/ref", captured[0].Referrer)
	s.Equal(http.Fields{{Name: "Accept", Value: "*/*"}}, captured[0].Fields)
	s.Equal("a=b", string(captured[0].Body))
}

func (s *StackTestSuite) TestUnroutedIsNotFound() {
	session, conn := s.connect(inet.SessionOptions{}, inet.Endpoint{Host: "example.com"})
	defer session.Close()
	defer conn.Close()

	req, err := conn.OpenRequest(context.Background(), inet.RequestOptions{Method: "GET", Target: "/missing"})
	s.Require().NoError(err)
	defer req.Close()

	_, err = req.Query(inet.QueryStatusCode, 0)
	s.ErrorIs(err, ErrNoResponse)

	s.Require().NoError(req.Send(context.Background(), nil))
	status, err := req.Query(inet.QueryStatusCode, 0)
	s.NoError(err)
	s.Equal("404", status)
}

func (s *StackTestSuite) TestAsyncCompletion() {
	done := make(chan inet.AsyncResult, 3)
	opts := inet.SessionOptions{
		Async: true,
		Callback: func(status inet.Status, info any) {
			if status == inet.StatusRequestComplete {
				done <- info.(inet.AsyncResult)
			}
		},
	}
	session, conn := s.connect(opts, inet.Endpoint{Host: "example.com"})
	defer session.Close()
	defer conn.Close()

	req, err := conn.OpenRequest(context.Background(), inet.RequestOptions{Method: "POST", Target: "/"})
	s.Require().NoError(err)
	defer req.Close()

	s.ErrorIs(req.SendEx(context.Background(), 3), inet.ErrIOPending)
	res := s.receive(done)
	s.NoError(res.Err)
	s.Equal(req, res.Request)

	_, err = req.Write([]byte("abc"))
	s.NoError(err)

	s.stack.FailAsync(OpEndRequest, nil)
	s.ErrorIs(req.EndRequest(context.Background()), inet.ErrIOPending)
	s.ErrorIs(s.receive(done).Err, ErrInjected)
}

func (s *StackTestSuite) TestHeldCallbacks() {
	done := make(chan inet.AsyncResult, 2)
	opts := inet.SessionOptions{
		Async: true,
		Callback: func(status inet.Status, info any) {
			if status == inet.StatusRequestComplete {
				done <- info.(inet.AsyncResult)
			}
		},
	}
	session, conn := s.connect(opts, inet.Endpoint{Host: "example.com"})
	defer session.Close()
	defer conn.Close()

	s.stack.Hold()
	s.False(s.stack.Release())

	first, err := conn.OpenRequest(context.Background(), inet.RequestOptions{Method: "GET", Target: "/a"})
	s.Require().NoError(err)
	defer first.Close()
	second, err := conn.OpenRequest(context.Background(), inet.RequestOptions{Method: "GET", Target: "/b"})
	s.Require().NoError(err)
	defer second.Close()

	s.ErrorIs(first.Send(context.Background(), nil), inet.ErrIOPending)
	s.ErrorIs(second.Send(context.Background(), nil), inet.ErrIOPending)
	s.Empty(done)
	s.Equal(2, s.stack.Held())

	s.True(s.stack.Release())
	s.Equal(first, s.receive(done).Request)
	s.True(s.stack.Release())
	s.Equal(second, s.receive(done).Request)
	s.False(s.stack.Release())
}

func (s *StackTestSuite) receive(ch <-chan inet.AsyncResult) inet.AsyncResult {
	select {
	case res := <-ch:
		return res
	case <-time.After(time.Second):
		s.FailNow("completion callback not called")
	}
	return inet.AsyncResult{}
}

func (s *StackTestSuite) TestFiles() {
	_, conn := s.connect(inet.SessionOptions{}, inet.Endpoint{Host: "host", Service: inet.ServiceHTTP})
	_, err := conn.OpenFile(context.Background(), "/a", inet.FileRead)
	s.ErrorIs(err, inet.ErrNotSupported)

	session, conn := s.connect(inet.SessionOptions{}, inet.Endpoint{Host: "host", Service: inet.ServiceFTP})
	defer session.Close()
	defer conn.Close()

	_, err = conn.OpenFile(context.Background(), "/missing", inet.FileRead)
	s.ErrorIs(err, ErrFileNotFound)

	f, err := conn.OpenFile(context.Background(), "/out.bin", inet.FileWrite)
	s.Require().NoError(err)
	_, err = f.Write([]byte("abc"))
	s.NoError(err)
	_, err = f.Write([]byte("de"))
	s.NoError(err)

	_, ok := s.stack.File("/out.bin")
	s.False(ok, "upload must not be visible before close")
	s.NoError(f.Close())

	data, ok := s.stack.File("/out.bin")
	s.True(ok)
	s.Equal("abcde", string(data))
	s.Equal([][]byte{[]byte("abc"), []byte("de")}, s.stack.Writes("/out.bin"))

	f, err = conn.OpenFile(context.Background(), "/out.bin", inet.FileRead)
	s.Require().NoError(err)
	defer f.Close()
	got, err := io.ReadAll(f)
	s.NoError(err)
	s.Equal("abcde", string(got))
}
