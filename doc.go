/*
	Project: Ark of God - church backend (membership applications, live broadcasts, devotions, push notifications)

	Binaries:
		apps/api	- HTTP API (echo)
		apps/admin	- admin CLI: migrate, adduser, resetpassword, notify
*/
package ark
